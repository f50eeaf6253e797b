package config

import "time"

const (
	// DefaultSettingsFileName is the root settings document looked up next
	// to the executable when no path is given.
	DefaultSettingsFileName = "settings.json"

	// DefaultDaemonName is the companion executable every instance drives.
	DefaultDaemonName = "ogamed"

	// DefaultTelegramAPIURL is the Telegram Bot API endpoint.
	DefaultTelegramAPIURL = "https://api.telegram.org"
)

// GetDefaultConfig returns the default process configuration.
func GetDefaultConfig() BotherdConfig {
	return BotherdConfig{
		LogPath: "log",
		Daemon: DaemonConfig{
			Args: []string{
				"--settings={{ .SettingsPath }}",
				"--alias={{ .Alias }}",
			},
			StartGrace:  2 * time.Second,
			StopTimeout: 10 * time.Second,
		},
		Instances: InstancesConfig{
			StartTimeout: 2 * time.Minute,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Notify: NotifyConfig{
			APIURL:                 DefaultTelegramAPIURL,
			RequestTimeout:         15 * time.Second,
			RetryMax:               3,
			ActivatedMessage:       "botherd messenger activated on {{ .Hostname }}",
			DeactivatedMessage:     "botherd messenger deactivated",
			PingMessage:            "botherd is alive: {{ .Instances }} instance(s) running, up {{ .Uptime }}",
			InstanceStartedMessage: "Instance {{ .Alias | quote }} started",
			InstanceStoppedMessage: "Instance {{ .Alias | quote }} stopped",
		},
	}
}
