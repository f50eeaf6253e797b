package app

import (
	"botherd/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Silent discards console output; the log file is still written.
	Silent bool

	// ConfigPath is the directory holding botherd.yaml (optional).
	// Empty means the executable directory.
	ConfigPath string

	// SettingsPath overrides the settings document location.
	SettingsPath string

	// LogPath overrides the log directory.
	LogPath string

	// DaemonPath overrides the companion executable.
	DaemonPath string

	// Process configuration, loaded during bootstrap
	BotherdConfig *config.BotherdConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug, silent bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
	}
}
