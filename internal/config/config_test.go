package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"CONSOLE_API_URL", "BACKEND", "PAGE_SIZE", "NOTIFY_DURATION_MS", "DESKTOP_NOTIFY", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := FromEnv()

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, BackendAPI, cfg.Backend)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 3*time.Second, cfg.NotifyDuration)
	assert.False(t, cfg.DesktopNotify)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CONSOLE_API_URL", "http://console.local:9000/")
	t.Setenv("BACKEND", "GEMINI")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("NOTIFY_DURATION_MS", "1500")
	t.Setenv("DESKTOP_NOTIFY", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()

	assert.Equal(t, "http://console.local:9000", cfg.APIBaseURL)
	assert.Equal(t, BackendGemini, cfg.Backend)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.NotifyDuration)
	assert.True(t, cfg.DesktopNotify)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PAGE_SIZE", "ten")
	t.Setenv("DESKTOP_NOTIFY", "maybe")

	cfg := FromEnv()

	assert.Equal(t, 10, cfg.PageSize)
	assert.False(t, cfg.DesktopNotify)
}

func TestValidate(t *testing.T) {
	base := Config{APIBaseURL: "http://x", Backend: BackendAPI, PageSize: 10, HistoryDB: "h.db"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "api ok", mutate: func(c *Config) {}},
		{name: "api without url", mutate: func(c *Config) { c.APIBaseURL = "" }, wantErr: "CONSOLE_API_URL"},
		{name: "gemini without key", mutate: func(c *Config) { c.Backend = BackendGemini }, wantErr: "GEMINI_API_KEY"},
		{name: "gemini without history", mutate: func(c *Config) {
			c.Backend = BackendGemini
			c.GeminiAPIKey = "k"
			c.HistoryDB = ""
		}, wantErr: "HISTORY_DB"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "openai" }, wantErr: "unknown BACKEND"},
		{name: "zero page size", mutate: func(c *Config) { c.PageSize = 0 }, wantErr: "PAGE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// captureStderr returns what fn wrote to os.Stderr.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	prev := os.Stderr
	os.Stderr = w
	fn()
	os.Stderr = prev
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	t.Setenv("PAGE_SIZE", "")
	os.Unsetenv("PAGE_SIZE")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAGE_SIZE=7\n"), 0o600))

	prev := AppConfig
	defer func() { AppConfig = prev }()

	out := captureStderr(t, func() { LoadConfig(path) })

	assert.Empty(t, out)
	assert.True(t, AppConfig.EnvFileLoaded)
	assert.Equal(t, 7, AppConfig.PageSize)
}

func TestLoadConfigWithoutEnvFileIsQuiet(t *testing.T) {
	prev := AppConfig
	defer func() { AppConfig = prev }()

	out := captureStderr(t, func() { LoadConfig(filepath.Join(t.TempDir(), "missing.env")) })

	assert.Empty(t, out)
	assert.False(t, AppConfig.EnvFileLoaded)
}
