package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateJWT("alice", secret, time.Hour)
	require.NoError(t, err)

	sub, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("alice", secret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, []byte("other"))
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	token, err := GenerateJWT("alice", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, secret)
	assert.Error(t, err)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = ValidateJWT(token, secret)
	assert.ErrorContains(t, err, "subject")
}

func TestTokenExpiry(t *testing.T) {
	token, err := GenerateJWT("bob", secret, 2*time.Hour)
	require.NoError(t, err)

	exp, err := TokenExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, 5*time.Second)

	_, err = TokenExpiry("not-a-token")
	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	fresh, _ := GenerateJWT("u", secret, time.Hour)
	stale, _ := GenerateJWT("u", secret, -time.Hour)
	closeToExpiry, _ := GenerateJWT("u", secret, 10*time.Second)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString(secret)

	assert.False(t, Expired(fresh, now, 30*time.Second))
	assert.True(t, Expired(stale, now, 0))
	assert.True(t, Expired(closeToExpiry, now, 30*time.Second))
	assert.False(t, Expired(noExp, now, time.Minute))
	assert.True(t, Expired("", now, 0))
	assert.True(t, Expired("garbage", now, 0))
}
