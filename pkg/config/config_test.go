package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ":8081", cfg.Signal.Address)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Std())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Address)
	})

	t.Run("yaml values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9999"
signal:
  ping_interval: 5s
auth:
  jwt_secret: unit-test-secret
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.Server.Address)
		assert.Equal(t, 5*time.Second, cfg.Signal.PingInterval.Std())
		assert.Equal(t, "unit-test-secret", cfg.Auth.JWTSecret)
		// Untouched values keep their defaults.
		assert.Equal(t, ":8081", cfg.Signal.Address)
	})

	t.Run("invalid duration is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
signal:
  ping_interval: fast
`), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid yaml is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
auth:
  jwt_secret: ""
`), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVESIGNAL_SERVER_ADDRESS", ":7070")
	t.Setenv("LIVESIGNAL_SIGNAL_ADDRESS", ":7071")
	t.Setenv("LIVESIGNAL_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, ":7071", cfg.Signal.Address)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero ping interval", func(c *Config) { c.Signal.PingInterval = 0 }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"negative token ttl", func(c *Config) { c.Auth.TokenTTL = Duration(-time.Hour) }},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"rate limiting enabled with zero rps", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"tracing enabled without jaeger url", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.JaegerURL = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
