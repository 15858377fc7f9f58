package config

// DefaultRedisURL is the store target used when nothing else is configured.
const DefaultRedisURL = "redis://localhost:6379"

// EnvRedisURL overrides redis.url from the process environment.
const EnvRedisURL = "REDBRIDGE_REDIS_URL"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Redis: RedisConfig{
			URL:              DefaultRedisURL,
			HealthIntervalMS: 1000,
			PingTimeoutMS:    500,
		},
		Log: LogConfig{Level: "info"},
	}
}
