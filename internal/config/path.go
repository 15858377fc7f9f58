package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath points at a config file when --config is not given.
const EnvConfigPath = "REDBRIDGE_CONFIG"

const configFile = "config.jsonc"

// ResolvePath picks the config location: --config, then REDBRIDGE_CONFIG,
// then $XDG_CONFIG_HOME/redbridge, then ~/.config/redbridge.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if path := strings.TrimSpace(candidate); path != "" {
			return path, nil
		}
	}

	dir := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("resolve config path: set --config, REDBRIDGE_CONFIG or XDG_CONFIG_HOME")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "redbridge", configFile), nil
}
