package app

import (
	"os"

	"workspaces/internal/config"
)

// ConfigPath returns the configuration file location, checking the
// WORKSPACES_CONFIG_PATH environment variable before falling back to the
// system default.
func ConfigPath() string {
	if path := os.Getenv("WORKSPACES_CONFIG_PATH"); path != "" {
		return path
	}
	return config.DefaultConfigPath
}
