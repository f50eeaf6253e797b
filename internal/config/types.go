package config

import "time"

// BotherdConfig is the top-level process configuration for botherd.
//
// It covers how the supervisor itself runs. The hot-reloadable settings
// document that decides which instances run is handled by the settings
// package.
type BotherdConfig struct {
	// Settings is the path of the root settings document.
	Settings string `yaml:"settings,omitempty"`

	// LogPath is the directory that receives botherd.log.
	LogPath string `yaml:"logPath,omitempty"`

	Daemon    DaemonConfig    `yaml:"daemon"`
	Instances InstancesConfig `yaml:"instances"`
	Watch     WatchConfig     `yaml:"watch"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DaemonConfig describes the companion executable each instance runs.
type DaemonConfig struct {
	// Path to the executable. Empty means DefaultDaemonName next to the
	// botherd binary, then PATH.
	Path string `yaml:"path,omitempty"`

	// Args are templates rendered per instance with .SettingsPath and .Alias.
	Args []string `yaml:"args,omitempty"`

	// StartGrace is how long a freshly spawned process must stay alive
	// before its start counts as successful.
	StartGrace time.Duration `yaml:"startGrace,omitempty"`

	// StopTimeout bounds the graceful stop before the process group is killed.
	StopTimeout time.Duration `yaml:"stopTimeout,omitempty"`
}

// InstancesConfig tunes the start phase of a reconciliation.
type InstancesConfig struct {
	// StartTimeout bounds a single instance start. Zero disables the bound.
	StartTimeout time.Duration `yaml:"startTimeout,omitempty"`

	// MaxConcurrentStarts limits the start fan-out. Zero means unlimited.
	MaxConcurrentStarts int `yaml:"maxConcurrentStarts,omitempty"`
}

// WatchConfig controls settings file watching.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// Disabled turns hot reload off; only the boot reconciliation runs.
	Disabled bool `yaml:"disabled,omitempty"`
}

// NotifyConfig configures the Telegram transport and message templates.
type NotifyConfig struct {
	APIURL                 string        `yaml:"apiURL,omitempty"`
	RequestTimeout         time.Duration `yaml:"requestTimeout,omitempty"`
	RetryMax               int           `yaml:"retryMax,omitempty"`
	ActivatedMessage       string        `yaml:"activatedMessage,omitempty"`
	DeactivatedMessage     string        `yaml:"deactivatedMessage,omitempty"`
	PingMessage            string        `yaml:"pingMessage,omitempty"`
	InstanceStartedMessage string        `yaml:"instanceStartedMessage,omitempty"`
	InstanceStoppedMessage string        `yaml:"instanceStoppedMessage,omitempty"`
}
