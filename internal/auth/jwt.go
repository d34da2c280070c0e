package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func GenerateJWT(userID string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ValidateJWT(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return "", fmt.Errorf("token has no subject")
		}
		return sub, nil
	}

	return "", fmt.Errorf("invalid token")
}

// TokenExpiry reads the exp claim without verifying the signature; the client
// only uses it to decide when to log in again. A token without exp returns the
// zero time.
func TokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Expired reports whether the token expires within leeway of now. Unparseable
// tokens count as expired; tokens without exp never expire.
func Expired(tokenString string, now time.Time, leeway time.Duration) bool {
	if tokenString == "" {
		return true
	}
	exp, err := TokenExpiry(tokenString)
	if err != nil {
		return true
	}
	if exp.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(exp)
}
