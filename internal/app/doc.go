// Package app provides application bootstrap and lifecycle management for botherd.
//
// # Architecture Overview
//
//  1. Bootstrap (bootstrap.go): logging, process configuration, command line overrides
//  2. Configuration (config.go): runtime configuration from flags
//  3. Services (services.go): wiring of registry, messenger, starter, engine and manager
//  4. Supervisor (supervisor.go): the Starting, Running, ShuttingDown, Stopped state machine
//  5. Modes (modes.go): shutdown signals and systemd notifications
//
// # Lifecycle
//
// Starting checks that the companion daemon exists and is executable and
// that the settings document exists. A failure here is fatal and nothing is
// started. The first reconciliation then runs in the foreground; once it is
// committed the supervisor enters Running, tells systemd READY=1 and starts
// watching the settings files.
//
// SIGINT, SIGTERM or cancellation of the run context move the supervisor to
// ShuttingDown: systemd gets STOPPING=1, watching stops, every instance is
// stopped and awaited and the messenger is deactivated. Stopped logs
// "Goodbye!".
//
// # Usage
//
//	cfg := app.NewConfig(debug, silent, configPath)
//	cfg.SettingsPath = settingsFlag
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
package app
