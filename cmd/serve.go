package cmd

import (
	"context"
	"fmt"

	"botherd/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveSilent discards console output. The log file is still written.
var serveSilent bool

// serveConfigPath is the directory holding botherd.yaml.
// Empty means the directory of the botherd executable.
var serveConfigPath string

// serveSettingsPath overrides the settings document from botherd.yaml.
var serveSettingsPath string

// serveLogPath overrides the log directory from botherd.yaml.
var serveLogPath string

// serveDaemonPath overrides the companion executable from botherd.yaml.
var serveDaemonPath string

// serveCmd defines the serve command structure.
// This is the main command of botherd: it reconciles the settings document
// once and then keeps the running instances in line with it until stopped.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the instances listed in the settings document and keep them in sync",
	Long: `Starts one companion daemon per instance listed in the settings document
and supervises them until interrupted (Ctrl+C or SIGTERM).

The settings document is either a single-instance document, which runs as the
instance "MAIN", or a multi-instance document with an "Instances" array:

  {
    "Instances": [
      { "Settings": "alpha/settings.json", "Alias": "alpha" },
      { "Settings": "beta/settings.json",  "Alias": "beta" }
    ]
  }

While running, botherd watches the settings document and every instance
settings file. Changes are applied without restarting botherd:
  - instances removed from the document are stopped
  - new instances are started
  - an instance whose settings file changed is restarted
  - alias edits are applied in place

Configuration:
  botherd loads botherd.yaml from --config-path, or from the directory of the
  botherd executable. Every setting has a default, so the file is optional.
  --settings, --log-path and --daemon take precedence over the file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveSilent, serveConfigPath)
	cfg.SettingsPath = serveSettingsPath
	cfg.LogPath = serveLogPath
	cfg.DaemonPath = serveDaemonPath

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Write logs to the log file only")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Directory containing botherd.yaml (default: executable directory)")
	serveCmd.Flags().StringVar(&serveSettingsPath, "settings", "", "Settings document to supervise (overrides botherd.yaml)")
	serveCmd.Flags().StringVar(&serveLogPath, "log-path", "", "Directory for botherd.log (overrides botherd.yaml)")
	serveCmd.Flags().StringVar(&serveDaemonPath, "daemon", "", "Companion daemon executable (overrides botherd.yaml)")
}
