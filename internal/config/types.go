// Package config resolves, parses, validates, and defaults redbridge configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by redbridge.
type Config struct {
	Redis   RedisConfig
	Socket  SocketConfig
	Health  ListenConfig
	Metrics ListenConfig
	Log     LogConfig
}

// RedisConfig selects the store and how its connections are monitored.
type RedisConfig struct {
	URL              string
	HealthIntervalMS int
	PingTimeoutMS    int
}

func (c RedisConfig) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalMS) * time.Millisecond
}

func (c RedisConfig) PingTimeout() time.Duration {
	return time.Duration(c.PingTimeoutMS) * time.Millisecond
}

// SocketConfig overrides the IPC socket location. Empty means the runtime dir default.
type SocketConfig struct {
	Path string
}

// ListenConfig is an optional TCP listen address. Empty disables the listener.
type ListenConfig struct {
	Listen string
}

func (c ListenConfig) Enabled() bool {
	return c.Listen != ""
}

type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
