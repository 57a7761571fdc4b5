package config

import (
	"os"
	"path/filepath"
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "PLAYFEEL_CONFIG"

// GetConfigPath returns the configuration file path using kubectl-style behavior.
// It first checks the PLAYFEEL_CONFIG environment variable, then falls back
// to the default location (~/.playfeel/config).
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigPathEnv); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".playfeel", "config"), nil
}
