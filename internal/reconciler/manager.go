package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botherd/internal/instances"
	"botherd/internal/settings"
	"botherd/pkg/logging"
)

// Manager feeds the engine from the settings files.
//
// It manages:
//   - the change detector watching the root and instance settings files
//   - the coalescing work queue
//   - the single consumer that loads the document and calls the engine
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig

	engine *Engine

	// changeDetector detects settings changes
	changeDetector ChangeDetector

	// queue is the work queue for reconciliation requests
	queue ReconcileQueue

	// changeChan receives change events from the detector
	changeChan chan ChangeEvent

	// watchPaths are the instance settings files of the last reconciliation
	watchPaths []string

	// lastSummary is the outcome of the last reconciliation
	lastSummary Summary

	// ctx is the manager's context
	ctx context.Context

	// cancelFunc cancels the manager's context
	cancelFunc context.CancelFunc

	// wg tracks the running goroutines
	wg sync.WaitGroup

	// running indicates if the manager is active
	running bool
}

// NewManager creates a new reconciliation manager.
func NewManager(config ManagerConfig, engine *Engine) *Manager {
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.Loader == nil {
		config.Loader = settings.Load
	}

	return &Manager{
		config:     config,
		engine:     engine,
		queue:      NewQueue(),
		changeChan: make(chan ChangeEvent, 100),
	}
}

// ReconcileNow loads the settings document and reconciles it in the calling
// goroutine. Load errors are returned as is; the registry is not touched.
func (m *Manager) ReconcileNow(ctx context.Context, restart map[instances.Identity]struct{}) (Summary, error) {
	doc, err := m.config.Loader(m.config.SettingsPath)
	if err != nil {
		m.engine.Metrics().RecordReloadFailure(err)
		return Summary{}, err
	}

	summary, err := m.engine.Reconcile(ctx, doc, restart)
	if err != nil {
		return summary, err
	}

	m.mu.Lock()
	m.lastSummary = summary
	m.watchPaths = make([]string, 0, len(summary.Desired))
	for _, id := range summary.Desired {
		m.watchPaths = append(m.watchPaths, id.Path())
	}
	paths := m.watchPaths
	detector := m.changeDetector
	m.mu.Unlock()

	if detector != nil {
		if err := detector.SetPaths(paths); err != nil {
			logging.Warn("ReconcileManager", "Failed to update watched settings files: %v", err)
		}
		logging.Debug("ReconcileManager", "Watching %d settings file(s)", detector.WatchedFiles())
	}
	return summary, nil
}

// Start begins watching and consuming reconcile requests.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}

	m.ctx, m.cancelFunc = context.WithCancel(ctx)
	m.running = true

	if !m.config.WatchDisabled && m.changeDetector == nil {
		m.changeDetector = NewFilesystemDetector(m.config.SettingsPath, m.config.DebounceInterval)
	}
	detector := m.changeDetector
	paths := m.watchPaths
	m.mu.Unlock()

	if detector != nil {
		if err := detector.SetPaths(paths); err != nil {
			logging.Warn("ReconcileManager", "Failed to set watched settings files: %v", err)
		}
		if err := detector.Start(m.ctx, m.changeChan); err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.cancelFunc()
			return fmt.Errorf("failed to start change detector: %w", err)
		}

		m.wg.Add(1)
		go m.processChangeEvents()
	} else {
		logging.Info("ReconcileManager", "Settings watching disabled")
	}

	m.wg.Add(1)
	go m.consume()

	logging.Debug("ReconcileManager", "Started")
	return nil
}

// processChangeEvents converts change events to reconcile requests.
func (m *Manager) processChangeEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.changeChan:
			if !ok {
				return
			}
			m.handleChangeEvent(event)
		}
	}
}

// handleChangeEvent turns a file change into a reconcile request. A change
// of an instance settings file restarts that instance.
func (m *Manager) handleChangeEvent(event ChangeEvent) {
	logging.Debug("ReconcileManager", "Handling change event: %s %s", event.Operation, event.FilePath)

	if event.Root {
		logging.Info("ReconcileManager", "Settings file changed, reconciling")
		m.queue.Add(ReconcileRequest{Reason: "settings changed", Source: event.Source})
		return
	}

	id, err := instances.NewIdentity(event.FilePath)
	if err != nil {
		logging.Warn("ReconcileManager", "Ignoring change of %s: %v", event.FilePath, err)
		return
	}
	logging.Info("ReconcileManager", "Instance settings %s changed, reconciling", event.FilePath)
	m.queue.Add(ReconcileRequest{
		Reason:  "instance settings changed",
		Source:  event.Source,
		Restart: map[instances.Identity]struct{}{id: {}},
	})
}

// consume is the only goroutine taking requests off the queue.
func (m *Manager) consume() {
	defer m.wg.Done()

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug("ReconcileManager", "Consumer shutting down")
			return
		}

		m.processRequest(req)
		m.queue.Done(req)
	}
}

// processRequest handles a single reconciliation request.
func (m *Manager) processRequest(req ReconcileRequest) {
	logging.Debug("ReconcileManager", "Reconciling (%s, source %s, %d requests coalesced)", req.Reason, req.Source, req.Coalesced)

	if _, err := m.ReconcileNow(m.ctx, req.Restart); err != nil {
		logging.Error("ReconcileManager", err, "Failed to reload settings, keeping %d running instance(s)", m.engine.Registry().Len())
	}
}

// TriggerReconcile queues a reconciliation of the current settings document.
// It works with watching disabled.
func (m *Manager) TriggerReconcile(reason string) {
	logging.Info("ReconcileManager", "Reconciliation requested: %s", reason)
	m.queue.Add(ReconcileRequest{Reason: reason, Source: SourceManual})
}

// Stop stops watching and waits for a running reconciliation to finish.
// Running instances are left alone; see Engine.Shutdown.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	detector := m.changeDetector
	m.mu.Unlock()

	logging.Debug("ReconcileManager", "Stopping reconciliation manager...")

	if detector != nil {
		if err := detector.Stop(); err != nil {
			logging.Error("ReconcileManager", err, "Error stopping change detector")
		}
	}

	m.queue.Shutdown()
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.wg.Wait()

	logging.Debug("ReconcileManager", "Reconciliation manager stopped")
	return nil
}

// LastSummary returns the outcome of the last successful reconciliation.
func (m *Manager) LastSummary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSummary
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetQueueLength returns the current queue length.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}
