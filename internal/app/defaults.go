package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables consulted by GetDefaults.
const (
	EnvConfigPath = "TAXARCHIVE_CONFIG_PATH"
	EnvHome       = "TAXARCHIVE_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - TAXARCHIVE_CONFIG_PATH: config file location (default: ~/.config/taxarchive.toml)
//   - TAXARCHIVE_HOME: base directory for taxarchive data (default: ~/.local/share/taxarchive)
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

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "taxarchive.toml"), nil
}

// getBaseDir falls back to the XDG default ~/.local/share/taxarchive.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "taxarchive"), nil
}
