package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"botherd/internal/config"
	"botherd/pkg/logging"
)

// Application bootstraps and runs botherd.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load the process configuration and set up logging
//  2. Execution phase: the Supervisor checks prerequisites, reconciles the
//     settings document and runs until a shutdown signal
//
// Example usage:
//
//	cfg := app.NewConfig(false, false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config     *Config
	supervisor *Supervisor
}

// NewApplication loads the process configuration, applies command line
// overrides and opens the log file.
//
// A pre-populated cfg.BotherdConfig is used as is.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(appLogLevel, logOutput)

	if cfg.BotherdConfig == nil {
		botherdCfg, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load botherd configuration")
			return nil, fmt.Errorf("failed to load botherd configuration: %w", err)
		}
		cfg.BotherdConfig = &botherdCfg
	}

	if err := applyOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.BotherdConfig.LogPath != "" {
		logFile, err := logging.InitWithLogFile(appLogLevel, logOutput, cfg.BotherdConfig.LogPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to open log file")
			return nil, err
		}
		logging.Debug("Bootstrap", "Logging to %s", logFile)
	}

	return &Application{
		config:     cfg,
		supervisor: NewSupervisor(cfg),
	}, nil
}

// applyOverrides puts command line flags on top of the loaded configuration.
// Relative paths are taken relative to the working directory.
func applyOverrides(cfg *Config) error {
	bc := cfg.BotherdConfig

	if cfg.SettingsPath != "" {
		abs, err := filepath.Abs(cfg.SettingsPath)
		if err != nil {
			return fmt.Errorf("failed to resolve settings path %s: %w", cfg.SettingsPath, err)
		}
		bc.Settings = abs
	}
	if cfg.LogPath != "" {
		abs, err := filepath.Abs(cfg.LogPath)
		if err != nil {
			return fmt.Errorf("failed to resolve log path %s: %w", cfg.LogPath, err)
		}
		bc.LogPath = abs
	}
	if cfg.DaemonPath != "" {
		bc.Daemon.Path = cfg.DaemonPath
	}

	if err := config.Validate(*bc); err != nil {
		return fmt.Errorf("invalid botherd configuration: %w", err)
	}
	return nil
}

// Supervisor returns the process supervisor.
func (a *Application) Supervisor() *Supervisor {
	return a.supervisor
}

// Run executes the application
//
// The method blocks until SIGINT, SIGTERM or ctx cancellation and returns
// once every instance has been stopped.
func (a *Application) Run(ctx context.Context) error {
	defer logging.Close()
	return a.supervisor.Run(ctx)
}
