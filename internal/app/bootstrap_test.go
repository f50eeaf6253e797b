package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botherd/internal/config"
	"botherd/pkg/logging"
)

func TestNewApplication_WithPreloadedConfig(t *testing.T) {
	dir := t.TempDir()
	bc := config.GetDefaultConfig()
	bc.Settings = filepath.Join(dir, "settings.json")
	bc.LogPath = filepath.Join(dir, "log")

	cfg := NewConfig(true, true, "")
	cfg.BotherdConfig = &bc

	application, err := NewApplication(cfg)
	require.NoError(t, err)
	defer logging.Close()

	require.NotNil(t, application.Supervisor())
	assert.Equal(t, StateStarting, application.Supervisor().State())

	_, err = os.Stat(filepath.Join(dir, "log", logging.LogFileName))
	assert.NoError(t, err, "log file is created during bootstrap")
}

func TestNewApplication_LoadsConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(`
settings: bots/settings.json
logPath: ""
instances:
  maxConcurrentStarts: 2
`), 0o644))

	cfg := NewConfig(false, true, dir)
	_, err := NewApplication(cfg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "bots", "settings.json"), cfg.BotherdConfig.Settings)
	assert.Equal(t, 2, cfg.BotherdConfig.Instances.MaxConcurrentStarts)
}

func TestNewApplication_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("daemon: [unclosed"), 0o644))

	_, err := NewApplication(NewConfig(false, true, dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load botherd configuration")
}

func TestApplyOverrides(t *testing.T) {
	bc := config.GetDefaultConfig()
	bc.Settings = "/etc/botherd/settings.json"

	cfg := &Config{
		SettingsPath:  "custom.json",
		LogPath:       "logs",
		DaemonPath:    "/opt/ogamed",
		BotherdConfig: &bc,
	}
	require.NoError(t, applyOverrides(cfg))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "custom.json"), bc.Settings)
	assert.Equal(t, filepath.Join(wd, "logs"), bc.LogPath)
	assert.Equal(t, "/opt/ogamed", bc.Daemon.Path)
}

func TestApplyOverrides_RejectsInvalidValues(t *testing.T) {
	bc := config.GetDefaultConfig()
	bc.Settings = "/etc/botherd/settings.json"
	bc.Daemon.StopTimeout = 0

	err := applyOverrides(&Config{BotherdConfig: &bc})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon.stopTimeout")
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(true, false, "/custom/path")
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Silent)
	assert.Equal(t, "/custom/path", cfg.ConfigPath)
	assert.Nil(t, cfg.BotherdConfig)
}
