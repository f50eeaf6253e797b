package reconciler

import (
	"context"
	"time"

	"botherd/internal/instances"
	"botherd/internal/settings"
)

// ChangeEvent represents a detected change in a watched settings file.
type ChangeEvent struct {
	// Operation describes what kind of change occurred.
	Operation ChangeOperation

	// Timestamp is when the change was detected.
	Timestamp time.Time

	// Source indicates where the change came from.
	Source ChangeSource

	// FilePath is the cleaned absolute path of the file that changed.
	FilePath string

	// Root is true when FilePath is the root settings document.
	Root bool
}

// ChangeOperation represents the type of change detected.
type ChangeOperation string

const (
	// OperationCreate indicates a file was created.
	OperationCreate ChangeOperation = "Create"

	// OperationUpdate indicates an existing file was modified.
	OperationUpdate ChangeOperation = "Update"

	// OperationDelete indicates a file was deleted or renamed away.
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource indicates where a change originated.
type ChangeSource string

const (
	// SourceFilesystem indicates the change came from filesystem watching.
	SourceFilesystem ChangeSource = "Filesystem"

	// SourceManual indicates a reconciliation asked for explicitly (SIGHUP).
	SourceManual ChangeSource = "Manual"
)

// ReconcileRequest asks for the root settings document to be reconciled.
//
// Requests coalesce: while one is pending, later ones merge into it.
type ReconcileRequest struct {
	// Reason is a short description for logs.
	Reason string

	// Source is where the latest merged request came from.
	Source ChangeSource

	// Restart holds identities whose own settings file changed. A kept
	// instance listed here is stopped and started again.
	Restart map[instances.Identity]struct{}

	// Coalesced counts the requests merged into this one.
	Coalesced int
}

// merge folds other into r.
func (r *ReconcileRequest) merge(other ReconcileRequest) {
	if len(other.Restart) > 0 {
		if r.Restart == nil {
			r.Restart = make(map[instances.Identity]struct{}, len(other.Restart))
		}
		for id := range other.Restart {
			r.Restart[id] = struct{}{}
		}
	}
	if other.Reason != "" {
		r.Reason = other.Reason
	}
	if other.Source != "" {
		r.Source = other.Source
	}
	r.Coalesced += other.Coalesced + 1
}

// Summary describes the outcome of one reconciliation.
type Summary struct {
	// RunID correlates the log lines of one reconciliation.
	RunID string

	// Initialized is the number of committed instances.
	Initialized int

	// Deinitialized is the number of stopped instances, restarts included.
	Deinitialized int

	// Started and Failed count the start attempts of this run.
	Started int
	Failed  int

	// Kept is the number of instances carried over; Renamed of those got a
	// new alias.
	Kept    int
	Renamed int

	// Desired lists the identities the document asked for, in order.
	Desired []instances.Identity

	Duration time.Duration
}

// Channel is the notification channel reconfigured by every reconciliation.
type Channel interface {
	Apply(ctx context.Context, m settings.MessengerSettings) error
	Shutdown(ctx context.Context)
}

// ChangeDetector is the interface for components that detect settings changes.
type ChangeDetector interface {
	// Start begins watching. Change events are sent to changes.
	Start(ctx context.Context, changes chan<- ChangeEvent) error

	// Stop gracefully stops the change detector.
	Stop() error

	// SetPaths replaces the set of watched files. The root document is
	// always watched.
	SetPaths(paths []string) error

	// GetSource returns the source type this detector monitors.
	GetSource() ChangeSource

	// WatchedFiles returns the number of watched files, the root included.
	WatchedFiles() int
}

// ReconcileQueue holds reconcile requests awaiting the consumer.
type ReconcileQueue interface {
	// Add queues a request, merging it into a pending one if present.
	Add(req ReconcileRequest)

	// Get retrieves the next request.
	// Blocks until a request is available and the previous one is done, or
	// the context is cancelled.
	Get(ctx context.Context) (ReconcileRequest, bool)

	// Done marks the current request as processed.
	Done(req ReconcileRequest)

	// Len returns the number of pending requests, zero or one.
	Len() int

	// Shutdown signals the queue to stop accepting new items.
	Shutdown()
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// SettingsPath is the root settings document.
	SettingsPath string

	// DebounceInterval is how long to wait for additional changes before
	// reconciling. Defaults to 500ms if not specified.
	DebounceInterval time.Duration

	// WatchDisabled turns off the change detector; only explicit triggers
	// reconcile.
	WatchDisabled bool

	// Loader loads the settings document. Defaults to settings.Load.
	Loader func(path string) (*settings.Document, error)
}
