package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"
)

var logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Redis.URL) == "" {
		return nil, fmt.Errorf("redis.url must not be empty")
	}
	if _, err := redis.ParseURL(cfg.Redis.URL); err != nil {
		return nil, fmt.Errorf("redis.url is invalid: %w", err)
	}
	if cfg.Redis.HealthIntervalMS <= 0 {
		return nil, fmt.Errorf("redis.health_interval_ms must be > 0")
	}
	if cfg.Redis.PingTimeoutMS <= 0 {
		return nil, fmt.Errorf("redis.ping_timeout_ms must be > 0")
	}
	if cfg.Redis.PingTimeoutMS > cfg.Redis.HealthIntervalMS {
		warnings = append(warnings, Warning{Message: "redis.ping_timeout_ms exceeds redis.health_interval_ms; probes may overlap ticks"})
	}
	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	for _, listen := range []struct {
		key  string
		addr string
	}{
		{key: "health.listen", addr: cfg.Health.Listen},
		{key: "metrics.listen", addr: cfg.Metrics.Listen},
	} {
		if listen.addr == "" {
			continue
		}
		host, _, err := net.SplitHostPort(listen.addr)
		if err != nil {
			return nil, fmt.Errorf("%s is invalid: %w", listen.key, err)
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s %q listens on all interfaces", listen.key, listen.addr)})
		}
	}
	if cfg.Health.Enabled() && cfg.Health.Listen == cfg.Metrics.Listen {
		return nil, fmt.Errorf("health.listen and metrics.listen must differ")
	}

	return warnings, nil
}
