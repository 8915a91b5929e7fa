package config

import (
	"os"
	"path/filepath"
	"time"

	"pyinstaller-studio/internal/domain"
)

const appDirName = ".pyinstaller-studio"

// DefaultSettings returns an empty profile for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		DataFiles: []domain.DataFile{},
	}
}

// DefaultSettingsPath is where the last saved profile is kept.
func DefaultSettingsPath() string {
	return filepath.Join(appHomeDir(), "history.json")
}

// DefaultConfigPath is the optional YAML runtime config file.
func DefaultConfigPath() string {
	return filepath.Join(appHomeDir(), "config.yml")
}

// DefaultAppConfig returns runtime defaults used when no config file exists.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		LogLevel:        "info",
		EventBufferSize: 2000,
		ProbeTimeout:    10 * time.Second,
		SettingsPath:    DefaultSettingsPath(),
	}
}

func appHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName)
}
