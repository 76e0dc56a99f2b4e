package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/cardrail/cardrail/errors"
)

// Save writes the configuration to the given path as TOML, creating parent
// directories as needed. The previous file is rotated to a .back1 copy so a
// bad write never destroys the only copy.
func Save(cfg *Config, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to back up existing config")
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create config directory %s", dir)
		}
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", configPath)
	}

	return nil
}

// createBackup rotates the existing config to configPath + ".back1"
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	backup := configPath + ".back1"
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}
	return os.WriteFile(backup, data, 0o644)
}
