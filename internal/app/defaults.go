package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SN_CONFIG_PATH: config file location
//   - SN_HOME: base directory for sn data (default: ~/.local/share/sn)
//
// Without SN_CONFIG_PATH the config lives in $SN_HOME/config.toml when SN_HOME
// is set, and in ~/.config/sn/config.toml otherwise.
func GetDefaults() (map[string]string, error) {
	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("SN_CONFIG_PATH"); path != "" {
		return path, nil
	}
	if home := os.Getenv("SN_HOME"); home != "" {
		return filepath.Join(home, "config.toml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "sn", "config.toml"), nil
}

// getBaseDir returns the base directory for sn data, checking SN_HOME env var first,
// then falling back to the XDG default ~/.local/share/sn.
func getBaseDir() (string, error) {
	if path := os.Getenv("SN_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "sn"), nil
}
