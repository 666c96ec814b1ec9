package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	c, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, 5*time.Second, c.HTTP.ReadHeaderTimeout)
	assert.Equal(t, "postgres", c.Store)
	assert.Equal(t, 5, c.Sync.MaxRetries)
	assert.Equal(t, 24*time.Hour, c.Auth.TokenTTL)
	assert.Empty(t, c.Telemetry.Endpoint)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("ROOM_STORE", "redis")
	t.Setenv("SYNC_MAX_RETRIES", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_TTL", "1h")

	c, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "redis", c.Store)
	assert.Equal(t, 2, c.Sync.MaxRetries)
	assert.Equal(t, time.Hour, c.Auth.TokenTTL)

	lvl, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "default secret in prod", env: map[string]string{"APP_ENV": "prod"}},
		{name: "unknown store", env: map[string]string{"ROOM_STORE": "mongo"}},
		{name: "log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "negative retries", env: map[string]string{"SYNC_MAX_RETRIES": "-1"}},
		{name: "bad duration", env: map[string]string{"JWT_TTL": "soon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
