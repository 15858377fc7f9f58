package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, time.Second, cfg.Redis.HealthInterval())
	require.Equal(t, 500*time.Millisecond, cfg.Redis.PingTimeout())
	require.False(t, cfg.Health.Enabled())
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty url", mutate: func(c *Config) { c.Redis.URL = " " }, wantErr: "redis.url must not be empty"},
		{name: "bad scheme", mutate: func(c *Config) { c.Redis.URL = "http://localhost:6379" }, wantErr: "redis.url is invalid"},
		{name: "zero interval", mutate: func(c *Config) { c.Redis.HealthIntervalMS = 0 }, wantErr: "redis.health_interval_ms must be > 0"},
		{name: "negative timeout", mutate: func(c *Config) { c.Redis.PingTimeoutMS = -1 }, wantErr: "redis.ping_timeout_ms must be > 0"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level must be one of"},
		{name: "health listen", mutate: func(c *Config) { c.Health.Listen = "7070" }, wantErr: "health.listen is invalid"},
		{name: "same listen", mutate: func(c *Config) {
			c.Health.Listen = "127.0.0.1:7070"
			c.Metrics.Listen = "127.0.0.1:7070"
		}, wantErr: "must differ"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Listen = ":9090"
	cfg.Redis.PingTimeoutMS = 5000

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "probes may overlap")
	require.Contains(t, warnings[1].Message, "all interfaces")
}
