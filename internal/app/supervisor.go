package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"botherd/internal/config"
	"botherd/internal/daemon"
	"botherd/internal/instances"
	"botherd/pkg/logging"
)

// State is the supervisor lifecycle state.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ErrSettingsNotFound is returned when the settings document is missing at boot.
var ErrSettingsNotFound = errors.New("settings document not found")

// shutdownGrace is added to the daemon stop timeout to bound teardown.
const shutdownGrace = 5 * time.Second

// Supervisor owns one run of botherd: prerequisites, the first
// reconciliation, hot reload while running, and the teardown.
type Supervisor struct {
	mu    sync.RWMutex
	state State

	config   *Config
	services *Services
	ready    chan struct{}

	// starter replaces the process starter when set.
	starter instances.Starter
	// checkDaemon resolves and checks the companion executable.
	checkDaemon func(explicit, name, baseDir string) (string, error)
	// notify reports lifecycle states to the service manager.
	notify func(state string)
	// reloadSignals subscribes to reload requests.
	reloadSignals func() (<-chan os.Signal, func())
}

// NewSupervisor creates a supervisor in the Starting state.
func NewSupervisor(cfg *Config) *Supervisor {
	return &Supervisor{
		state:       StateStarting,
		config:      cfg,
		ready:       make(chan struct{}),
		checkDaemon:   daemon.Prerequisites,
		notify:        notifySystemd,
		reloadSignals: reloadSignals,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready is closed once the first reconciliation has completed.
func (s *Supervisor) Ready() <-chan struct{} {
	return s.ready
}

// Services returns the wired services, nil before Run built them.
func (s *Supervisor) Services() *Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	previous := s.state
	s.state = state
	s.mu.Unlock()
	logging.Debug("Supervisor", "State %s -> %s", previous, state)
}

// Run boots botherd and blocks until SIGINT, SIGTERM or ctx cancellation.
// Errors before Running are boot-fatal.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := withShutdownSignals(ctx)
	defer stop()

	s.setState(StateStarting)
	bc := s.config.BotherdConfig
	if bc == nil {
		return fmt.Errorf("botherd configuration not loaded")
	}

	daemonPath, err := s.checkPrerequisites()
	if err != nil {
		s.setState(StateStopped)
		return err
	}

	services, err := InitializeServices(s.config, daemonPath, s.starter)
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	s.mu.Lock()
	s.services = services
	s.mu.Unlock()

	logging.Info("Supervisor", "Loading settings from %s", bc.Settings)
	if _, err := services.Manager.ReconcileNow(ctx, nil); err != nil {
		logging.Error("Supervisor", err, "Initial reconciliation failed")
		s.teardown()
		return fmt.Errorf("initial reconciliation failed: %w", err)
	}

	if err := services.Manager.Start(ctx); err != nil {
		logging.Error("Supervisor", err, "Failed to start settings watcher")
		s.teardown()
		return err
	}

	reload, stopReload := s.reloadSignals()
	defer stopReload()

	s.setState(StateRunning)
	s.notify(sddaemon.SdNotifyReady)
	close(s.ready)
	logging.Info("Supervisor", "Running %d instance(s). Press Ctrl+C to stop.", services.Registry.Len())

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case sig := <-reload:
			services.Manager.TriggerReconcile(sig.String())
		}
	}
}

// checkPrerequisites runs the boot checks: the companion executable and
// the settings document.
func (s *Supervisor) checkPrerequisites() (string, error) {
	bc := s.config.BotherdConfig

	daemonPath, err := s.checkDaemon(bc.Daemon.Path, config.DefaultDaemonName, config.ExecutableDir())
	if err != nil {
		logging.Error("Supervisor", err, "Companion daemon check failed. Cannot proceed...")
		return "", fmt.Errorf("companion daemon check failed: %w", err)
	}

	if _, err := os.Stat(bc.Settings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Error("Supervisor", nil, "\"%s\" not found. Cannot proceed...", bc.Settings)
			return "", fmt.Errorf("%w: %s", ErrSettingsNotFound, bc.Settings)
		}
		return "", fmt.Errorf("failed to inspect settings %s: %w", bc.Settings, err)
	}

	return daemonPath, nil
}

// teardown stops watching, stops every instance and tears the messenger down.
func (s *Supervisor) teardown() {
	s.setState(StateShuttingDown)
	s.notify(sddaemon.SdNotifyStopping)
	logging.Info("Supervisor", "Shutting down...")

	s.mu.RLock()
	services := s.services
	s.mu.RUnlock()

	if services != nil {
		if err := services.Manager.Stop(); err != nil {
			logging.Error("Supervisor", err, "Error stopping settings watcher")
		}

		timeout := s.config.BotherdConfig.Daemon.StopTimeout + shutdownGrace
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := services.Engine.Shutdown(ctx); err != nil {
			logging.Error("Supervisor", err, "Some instances did not stop cleanly")
		}
	}

	s.setState(StateStopped)
	logging.Info("Supervisor", "Goodbye!")
}
