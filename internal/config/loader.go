package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"botherd/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the optional process configuration file.
	ConfigFileName = "botherd.yaml"
)

// executablePath is overridable in tests.
var executablePath = os.Executable

// ExecutableDir returns the directory of the running binary, falling back to
// the working directory.
func ExecutableDir() string {
	exe, err := executablePath()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// LoadConfig loads botherd.yaml from configPath on top of the defaults.
// A missing file is not an error. An empty configPath uses the executable
// directory.
func LoadConfig(configPath string) (BotherdConfig, error) {
	if configPath == "" {
		configPath = ExecutableDir()
	}

	cfg := GetDefaultConfig()
	configFilePath := filepath.Join(configPath, ConfigFileName)

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No %s found at %s, using defaults", ConfigFileName, configFilePath)
			return finalize(cfg, configPath)
		}
		return BotherdConfig{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BotherdConfig{}, ConfigurationError{
			FilePath:    configFilePath,
			FileName:    ConfigFileName,
			Category:    "process",
			ErrorType:   "parse",
			Message:     "malformed YAML",
			Details:     err.Error(),
			Suggestions: []string{"Check indentation and that durations look like 500ms or 2m"},
		}
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)

	return finalize(cfg, configPath)
}

// finalize fills derived values, resolves relative paths against baseDir and
// validates the result.
func finalize(cfg BotherdConfig, baseDir string) (BotherdConfig, error) {
	if cfg.Settings == "" {
		cfg.Settings = filepath.Join(ExecutableDir(), DefaultSettingsFileName)
	} else if !filepath.IsAbs(cfg.Settings) {
		cfg.Settings = filepath.Join(baseDir, cfg.Settings)
	}
	if cfg.LogPath != "" && !filepath.IsAbs(cfg.LogPath) {
		wd, err := os.Getwd()
		if err == nil {
			cfg.LogPath = filepath.Join(wd, cfg.LogPath)
		}
	}
	if cfg.Notify.APIURL == "" {
		cfg.Notify.APIURL = DefaultTelegramAPIURL
	}

	if err := Validate(cfg); err != nil {
		return BotherdConfig{}, err
	}
	return cfg, nil
}
