package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := validConfig(t)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cfg.RedirectURL)
	assert.Equal(t, StoreMemory, cfg.SessionStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, "primary", cfg.CalendarID)
	assert.Equal(t, "Asia/Seoul", cfg.TimeZone)
	assert.Equal(t, 15*time.Second, cfg.CalendarTimeout)
	assert.Equal(t, "caltodo", cfg.Instrumentation.ServiceName)
	assert.Equal(t, "http://localhost:8080", cfg.ResolvedBaseURL())
	assert.False(t, cfg.SecureCookies())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("BASE_URL", "https://todo.example.com/")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_MAX_AGE", "2h")
	t.Setenv("CALENDAR_TIMEOUT", "5s")
	t.Setenv("METRICS_EXPORTER", "stdout")
	cfg := validConfig(t)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "https://todo.example.com", cfg.ResolvedBaseURL())
	assert.True(t, cfg.SecureCookies())
	assert.Equal(t, StoreRedis, cfg.SessionStore)
	assert.Equal(t, 2*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 5*time.Second, cfg.CalendarTimeout)
	assert.Equal(t, "stdout", cfg.Instrumentation.MetricsExporter)
}

func TestLoad_InstrumentationEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	cfg := validConfig(t)

	assert.Equal(t, "test-service", cfg.Instrumentation.ServiceName)
	assert.False(t, cfg.Instrumentation.Enabled)
	assert.Equal(t, "stdout", cfg.Instrumentation.TracingExporter)
	assert.Equal(t, 0.5, cfg.Instrumentation.TraceSamplingRate)
	assert.Equal(t, "unknown", cfg.Instrumentation.ServiceVersion, "version is not read from env")
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.GoogleClientID = "" },
			wantErr: "GOOGLE_CLIENT_ID",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.GoogleClientSecret = "" },
			wantErr: "GOOGLE_CLIENT_SECRET",
		},
		{
			name:    "bad redirect",
			mutate:  func(c *Config) { c.RedirectURL = "not a url" },
			wantErr: "REDIRECT_URI",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.SessionStore = "etcd" },
			wantErr: "SESSION_STORE",
		},
		{
			name:    "unknown time zone",
			mutate:  func(c *Config) { c.TimeZone = "Mars/Olympus" },
			wantErr: "time zone",
		},
		{
			name:    "bad encryption key",
			mutate:  func(c *Config) { c.TokenEncryptionKey = base64.StdEncoding.EncodeToString([]byte("short")) },
			wantErr: "32 bytes",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.CalendarTimeout = 0 },
			wantErr: "CALENDAR_TIMEOUT",
		},
		{
			name:    "burst required",
			mutate:  func(c *Config) { c.RateLimitBurst = 0 },
			wantErr: "RATE_LIMIT_BURST",
		},
		{
			name:    "bad instrumentation",
			mutate:  func(c *Config) { c.Instrumentation.MetricsExporter = "graphite" },
			wantErr: "metrics exporter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEncryptionKey(t *testing.T) {
	cfg := validConfig(t)

	key, err := cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Nil(t, key, "no secret configured means no encryption")

	cfg.SessionSecret = "keyboard cat"
	derived, err := cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, derived, 32)

	explicit := make([]byte, 32)
	explicit[0] = 7
	cfg.TokenEncryptionKey = base64.StdEncoding.EncodeToString(explicit)
	key, err = cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Equal(t, explicit, key)
}
