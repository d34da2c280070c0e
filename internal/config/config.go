package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendAPI    = "api"
	BackendGemini = "gemini"
)

type Config struct {
	APIBaseURL     string
	APIToken       string
	Username       string
	Password       string
	Backend        string
	GeminiAPIKey   string
	HistoryDB      string
	LogLevel       string
	LogFile        string
	PageSize       int
	NotifyDuration time.Duration
	DesktopNotify  bool
	HTTPTimeout    time.Duration
	WelcomeMessage string
	DemoJWTSecret  string

	// EnvFileLoaded reports whether LoadConfig found a .env file.
	EnvFileLoaded bool
}

var AppConfig Config

// LoadConfig reads .env (or the given files) when present, then the environment.
// Nothing is printed here; the terminal may already belong to the UI.
func LoadConfig(files ...string) {
	err := godotenv.Load(files...)
	AppConfig = FromEnv()
	AppConfig.EnvFileLoaded = err == nil
}

// FromEnv builds a Config from the current process environment without touching .env files.
func FromEnv() Config {
	return Config{
		APIBaseURL:     strings.TrimRight(getEnv("CONSOLE_API_URL", "http://localhost:8080"), "/"),
		APIToken:       getEnv("CONSOLE_TOKEN", ""),
		Username:       getEnv("CONSOLE_USERNAME", ""),
		Password:       getEnv("CONSOLE_PASSWORD", ""),
		Backend:        strings.ToLower(getEnv("BACKEND", BackendAPI)),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		HistoryDB:      getEnv("HISTORY_DB", "console_history.db"),
		LogLevel:       strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFile:        getEnv("LOG_FILE", "console.log"),
		PageSize:       getEnvAsInt("PAGE_SIZE", 10),
		NotifyDuration: time.Duration(getEnvAsInt("NOTIFY_DURATION_MS", 3000)) * time.Millisecond,
		DesktopNotify:  getEnvAsBool("DESKTOP_NOTIFY", false),
		HTTPTimeout:    time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		WelcomeMessage: getEnv("WELCOME_MESSAGE", "Hello! Pick one or more knowledge bases and ask me anything about them."),
		DemoJWTSecret:  getEnv("DEMO_JWT_SECRET", "demo-secret"),
	}
}

// Validate reports the first setting that makes the configuration unusable.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAPI:
		if c.APIBaseURL == "" {
			return fmt.Errorf("CONSOLE_API_URL is required for the %q backend", BackendAPI)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %q backend", BackendGemini)
		}
		if c.HistoryDB == "" {
			return fmt.Errorf("HISTORY_DB is required for the %q backend", BackendGemini)
		}
	default:
		return fmt.Errorf("unknown BACKEND %q (want %q or %q)", c.Backend, BackendAPI, BackendGemini)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
