// Package config provides the process configuration for botherd.
//
// The process configuration describes how the supervisor runs: where the
// root settings document and log directory live, how the companion daemon is
// spawned per instance, start and stop bounds, watch debounce, and the
// Telegram transport with its message templates. It is read once at boot
// from an optional botherd.yaml and never reloaded.
//
// The hot-reloadable settings document that decides which instances run is
// parsed by the settings package, which reuses ConfigurationError and
// ConfigurationErrorCollection from here to report every malformed entry in
// a single pass.
//
// # File Format
//
//	settings: ./settings.json
//	logPath: ./log
//	daemon:
//	  path: /opt/ogamed/ogamed
//	  args: ["--settings={{ .SettingsPath }}", "--alias={{ .Alias }}"]
//	  startGrace: 2s
//	  stopTimeout: 10s
//	instances:
//	  startTimeout: 2m
//	  maxConcurrentStarts: 4
//	watch:
//	  debounce: 500ms
//
// Missing keys keep the values of GetDefaultConfig. Relative settings paths
// resolve against the configuration directory; a relative log path resolves
// against the working directory.
package config
