package app

import (
	"fmt"

	"botherd/internal/instances"
	"botherd/internal/notify"
	"botherd/internal/reconciler"
	"botherd/internal/template"
	"botherd/internal/worker"
)

// Services holds the components wired together for one run.
//
// Field descriptions:
//   - Registry: the committed instance set
//   - Notify: Telegram messenger lifecycle, reconfigured by every reconciliation
//   - Engine: diff and apply of the settings document
//   - Manager: watches the settings files and feeds the engine
//
// Services are initialized in dependency order: templates and registry,
// then the notification controller, the starter, the engine and finally the
// manager.
type Services struct {
	Registry  *instances.Registry
	Templates *template.Engine
	Notify    *notify.Controller
	Starter   instances.Starter
	Metrics   *reconciler.ReconcilerMetrics
	Engine    *reconciler.Engine
	Manager   *reconciler.Manager
}

// InitializeServices builds the services for cfg. daemonPath is the
// checked companion executable. A non-nil starter replaces the process
// starter.
func InitializeServices(cfg *Config, daemonPath string, starter instances.Starter) (*Services, error) {
	if cfg.BotherdConfig == nil {
		return nil, fmt.Errorf("botherd configuration not loaded")
	}
	bc := cfg.BotherdConfig

	templates := template.New()
	for _, text := range append(append([]string{}, bc.Daemon.Args...),
		bc.Notify.ActivatedMessage,
		bc.Notify.DeactivatedMessage,
		bc.Notify.PingMessage,
		bc.Notify.InstanceStartedMessage,
		bc.Notify.InstanceStoppedMessage,
	) {
		if err := templates.Parse(text); err != nil {
			return nil, fmt.Errorf("invalid template in botherd configuration: %w", err)
		}
	}

	registry := instances.NewRegistry()

	controller := notify.NewController(notify.ControllerConfig{
		Notify:        bc.Notify,
		Templates:     templates,
		InstanceCount: registry.Len,
	})

	if starter == nil {
		starter = worker.NewProcessStarter(worker.Options{
			DaemonPath:     daemonPath,
			Args:           bc.Daemon.Args,
			StartGrace:     bc.Daemon.StartGrace,
			StopTimeout:    bc.Daemon.StopTimeout,
			StartedMessage: bc.Notify.InstanceStartedMessage,
			StoppedMessage: bc.Notify.InstanceStoppedMessage,
			Templates:      templates,
		})
	}

	metrics := reconciler.NewReconcilerMetrics()
	engine := reconciler.NewEngine(reconciler.EngineConfig{
		Registry:            registry,
		Starter:             starter,
		Notifier:            controller.Relay(),
		Channel:             controller,
		StartTimeout:        bc.Instances.StartTimeout,
		MaxConcurrentStarts: bc.Instances.MaxConcurrentStarts,
		StopTimeout:         bc.Daemon.StopTimeout + shutdownGrace,
		Metrics:             metrics,
	})

	manager := reconciler.NewManager(reconciler.ManagerConfig{
		SettingsPath:     bc.Settings,
		DebounceInterval: bc.Watch.Debounce,
		WatchDisabled:    bc.Watch.Disabled,
	}, engine)

	return &Services{
		Registry:  registry,
		Templates: templates,
		Notify:    controller,
		Starter:   starter,
		Metrics:   metrics,
		Engine:    engine,
		Manager:   manager,
	}, nil
}
