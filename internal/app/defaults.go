package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - HT_CONFIG_PATH: config file location (default: ~/.config/ht.toml)
//   - HT_HOME: base directory for ht data (default: ~/.local/share/ht)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// APIToken returns HT_API_TOKEN when set, otherwise configured.
func APIToken(configured string) string {
	if tok := strings.TrimSpace(os.Getenv("HT_API_TOKEN")); tok != "" {
		return tok
	}
	return configured
}

// getConfigPath returns the config file path, checking HT_CONFIG_PATH env var first,
// then falling back to the default ~/.config/ht.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("HT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ht.toml"), nil
}

// getBaseDir returns the base directory for ht data, checking HT_HOME env var first,
// then falling back to the XDG default ~/.local/share/ht.
func getBaseDir() (string, error) {
	if path := os.Getenv("HT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ht"), nil
}
