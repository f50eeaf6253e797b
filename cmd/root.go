package cmd

import (
	"errors"
	"os"

	"botherd/internal/app"
	"botherd/internal/daemon"
	"botherd/internal/settings"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeSettingsNotFound indicates the settings document does not exist.
	ExitCodeSettingsNotFound = 2
	// ExitCodeDaemonNotFound indicates the companion daemon could not be located.
	ExitCodeDaemonNotFound = 3
)

// rootCmd represents the base command for the botherd application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "botherd",
	Short: "Supervise a herd of bot instances from one settings document",
	Long: `botherd reads a settings document that lists bot instances and keeps
one companion daemon running per instance. Edits to the document, or to any
instance settings file it references, are picked up while running: removed
instances are stopped, new ones are started and changed ones are restarted.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "botherd version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and service managers.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, app.ErrSettingsNotFound), errors.Is(err, settings.ErrNotFound):
		return ExitCodeSettingsNotFound
	case errors.Is(err, daemon.ErrNotFound):
		return ExitCodeDaemonNotFound
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
