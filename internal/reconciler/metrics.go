package reconciler

import (
	"sync"
	"time"

	"botherd/pkg/logging"
)

// ReconcilerMetrics tracks reconciliation outcomes for logs and the check
// command.
//
// InFlight and MaxInFlight count reconciliation bodies running at the same
// time. The engine serializes reconciliations, so MaxInFlight above one
// means that guarantee was broken.
type ReconcilerMetrics struct {
	mu sync.RWMutex

	inFlight    int64
	maxInFlight int64

	totalReconciles        int64
	totalReloadFailures    int64
	totalStartAttempts     int64
	totalStartSuccesses    int64
	totalStartFailures     int64
	totalMissingConfigs    int64
	totalStartTimeouts     int64
	totalStops             int64
	totalStopFailures      int64
	lastReconcileAt        time.Time
	lastReconcileDuration  time.Duration
	lastReloadFailureAt    time.Time
	lastReloadFailureError string
}

// NewReconcilerMetrics creates a new ReconcilerMetrics instance.
func NewReconcilerMetrics() *ReconcilerMetrics {
	return &ReconcilerMetrics{}
}

// beginReconcile marks a reconciliation body as running.
func (m *ReconcilerMetrics) beginReconcile() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	if m.inFlight > 1 {
		logging.Error("ReconcilerMetrics", nil, "%d reconciliations running concurrently", m.inFlight)
	}
}

// endReconcile records a finished reconciliation body.
func (m *ReconcilerMetrics) endReconcile(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight--
	m.totalReconciles++
	m.lastReconcileAt = time.Now()
	m.lastReconcileDuration = duration
}

// RecordReloadFailure records a settings document that could not be loaded.
func (m *ReconcilerMetrics) RecordReloadFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalReloadFailures++
	m.lastReloadFailureAt = time.Now()
	if err != nil {
		m.lastReloadFailureError = err.Error()
	}
}

// RecordStartAttempt records an instance start attempt.
func (m *ReconcilerMetrics) RecordStartAttempt(alias string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalStartAttempts++
	logging.Debug("ReconcilerMetrics", "Start attempt for %s", alias)
}

// RecordStartSuccess records a successful instance start.
func (m *ReconcilerMetrics) RecordStartSuccess(alias string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalStartSuccesses++
}

// RecordStartFailure records a failed instance start. Missing configuration
// and timeouts are also counted separately.
func (m *ReconcilerMetrics) RecordStartFailure(alias string, missingConfig, timedOut bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalStartFailures++
	if missingConfig {
		m.totalMissingConfigs++
	}
	if timedOut {
		m.totalStartTimeouts++
	}
}

// RecordStop records an instance stop.
func (m *ReconcilerMetrics) RecordStop(alias string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalStops++
	if err != nil {
		m.totalStopFailures++
	}
}

// ReconcilerMetricsSummary provides a summary of reconciliation metrics.
type ReconcilerMetricsSummary struct {
	InFlight               int64         `json:"in_flight"`
	MaxInFlight            int64         `json:"max_in_flight"`
	TotalReconciles        int64         `json:"total_reconciles"`
	TotalReloadFailures    int64         `json:"total_reload_failures"`
	TotalStartAttempts     int64         `json:"total_start_attempts"`
	TotalStartSuccesses    int64         `json:"total_start_successes"`
	TotalStartFailures     int64         `json:"total_start_failures"`
	TotalMissingConfigs    int64         `json:"total_missing_configs"`
	TotalStartTimeouts     int64         `json:"total_start_timeouts"`
	TotalStops             int64         `json:"total_stops"`
	TotalStopFailures      int64         `json:"total_stop_failures"`
	LastReconcileAt        time.Time     `json:"last_reconcile_at,omitempty"`
	LastReconcileDuration  time.Duration `json:"last_reconcile_duration"`
	LastReloadFailureAt    time.Time     `json:"last_reload_failure_at,omitempty"`
	LastReloadFailureError string        `json:"last_reload_failure_error,omitempty"`
	StartFailureRate       float64       `json:"start_failure_rate"`
}

// GetSummary returns a snapshot of the metrics.
func (m *ReconcilerMetrics) GetSummary() ReconcilerMetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := ReconcilerMetricsSummary{
		InFlight:               m.inFlight,
		MaxInFlight:            m.maxInFlight,
		TotalReconciles:        m.totalReconciles,
		TotalReloadFailures:    m.totalReloadFailures,
		TotalStartAttempts:     m.totalStartAttempts,
		TotalStartSuccesses:    m.totalStartSuccesses,
		TotalStartFailures:     m.totalStartFailures,
		TotalMissingConfigs:    m.totalMissingConfigs,
		TotalStartTimeouts:     m.totalStartTimeouts,
		TotalStops:             m.totalStops,
		TotalStopFailures:      m.totalStopFailures,
		LastReconcileAt:        m.lastReconcileAt,
		LastReconcileDuration:  m.lastReconcileDuration,
		LastReloadFailureAt:    m.lastReloadFailureAt,
		LastReloadFailureError: m.lastReloadFailureError,
	}
	if m.totalStartAttempts > 0 {
		summary.StartFailureRate = float64(m.totalStartFailures) / float64(m.totalStartAttempts)
	}
	return summary
}

// Reset clears all metrics.
func (m *ReconcilerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	inFlight := m.inFlight
	m.inFlight, m.maxInFlight = 0, 0
	m.totalReconciles, m.totalReloadFailures = 0, 0
	m.totalStartAttempts, m.totalStartSuccesses, m.totalStartFailures = 0, 0, 0
	m.totalMissingConfigs, m.totalStartTimeouts = 0, 0
	m.totalStops, m.totalStopFailures = 0, 0
	m.lastReconcileAt, m.lastReconcileDuration = time.Time{}, 0
	m.lastReloadFailureAt, m.lastReloadFailureError = time.Time{}, ""
	// A running reconciliation still calls endReconcile.
	m.inFlight = inFlight
}
