package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Knowledge.AutoConnectionEnabled)
	assert.Equal(t, 3, cfg.Knowledge.MaxConcurrency)
	assert.Equal(t, 5*time.Second, cfg.Knowledge.RequestTimeout)
	assert.Equal(t, 0.3, cfg.Knowledge.ConfidenceThreshold)
	assert.Equal(t, 5000, cfg.Knowledge.MaxResponseChars)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.SSRF.Enabled)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Session.IdleTimeout)
}

func TestNewConfigEnvOverride(t *testing.T) {
	t.Setenv("AUTO_CONNECTION_ENABLED", "false")
	t.Setenv("KNOWLEDGE_MAX_CONCURRENCY", "7")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_MINUTE", "9")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Knowledge.AutoConnectionEnabled)
	assert.Equal(t, 7, cfg.Knowledge.MaxConcurrency)
	assert.Equal(t, 9, cfg.RateLimit.RequestsPerWindow)
}

func TestNewConfigOptionOverridesEnv(t *testing.T) {
	t.Setenv("AUTO_CONNECTION_ENABLED", "false")

	cfg, err := NewConfig(WithAutoConnection(true))
	require.NoError(t, err)

	assert.True(t, cfg.Knowledge.AutoConnectionEnabled)
}

func TestNewConfigValidatesRedisBackend(t *testing.T) {
	_, err := NewConfig(func(c *Config) error {
		c.Session.Backend = "redis"
		return nil
	})
	require.Error(t, err)
}

func TestWithSessionTTLRejectsNonPositive(t *testing.T) {
	_, err := NewConfig(WithSessionTTL(0))
	require.Error(t, err)
}
