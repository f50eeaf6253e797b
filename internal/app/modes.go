package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"botherd/pkg/logging"
)

// withShutdownSignals returns a context cancelled by SIGINT or SIGTERM.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): triggers graceful shutdown
//   - SIGTERM: triggers graceful shutdown (systemd, containers)
func withShutdownSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// reloadSignals delivers SIGHUP, the request to re-read the settings
// document. The returned func stops delivery.
func reloadSignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	return ch, func() { signal.Stop(ch) }
}

// notifySystemd reports state to systemd when running as a Type=notify
// unit. Outside systemd it does nothing.
func notifySystemd(state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Supervisor", "Failed to notify systemd (%s): %v", state, err)
		return
	}
	if sent {
		logging.Debug("Supervisor", "Notified systemd: %s", state)
	}
}
