package reconciler

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"botherd/pkg/logging"
)

// FilesystemDetector implements ChangeDetector for settings files.
//
// It watches the directories holding the root document and every instance
// settings file rather than the files themselves, so editors that save by
// writing a temporary file and renaming it over the original are seen too.
// Events for files outside the watched set are ignored.
type FilesystemDetector struct {
	mu sync.RWMutex

	// rootPath is the root settings document
	rootPath string

	// files is the set of watched files
	files map[string]bool

	// dirs maps watched directories to the number of files in them
	dirs map[string]int

	// watcher is the fsnotify watcher instance
	watcher *fsnotify.Watcher

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	// pendingEvents tracks pending debounced events
	pendingEvents map[string]*debounceEntry

	// stopCh signals shutdown
	stopCh chan struct{}

	// running indicates if the detector is active
	running bool
}

// debounceEntry tracks a pending event for debouncing.
type debounceEntry struct {
	event     ChangeEvent
	timer     *time.Timer
	operation ChangeOperation
}

// NewFilesystemDetector creates a detector for the root settings document.
func NewFilesystemDetector(rootPath string, debounceInterval time.Duration) *FilesystemDetector {
	if debounceInterval == 0 {
		debounceInterval = 500 * time.Millisecond
	}

	root := cleanPath(rootPath)
	return &FilesystemDetector{
		rootPath:         root,
		files:            map[string]bool{root: true},
		dirs:             make(map[string]int),
		debounceInterval: debounceInterval,
		pendingEvents:    make(map[string]*debounceEntry),
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching for filesystem changes.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.mu.Unlock()
		return err
	}

	d.watcher = watcher
	d.running = true
	d.stopCh = make(chan struct{})
	d.dirs = make(map[string]int)
	for file := range d.files {
		d.watchDirLocked(filepath.Dir(file))
	}
	d.mu.Unlock()

	go d.processEvents(ctx, watcher, changes)

	logging.Info("FilesystemDetector", "Started watching %s for settings changes", d.rootPath)
	return nil
}

// SetPaths replaces the watched instance settings files.
func (d *FilesystemDetector) SetPaths(paths []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	files := map[string]bool{d.rootPath: true}
	for _, p := range paths {
		files[cleanPath(p)] = true
	}

	if d.running {
		for file := range files {
			if !d.files[file] {
				d.watchDirLocked(filepath.Dir(file))
			}
		}
		for file := range d.files {
			if !files[file] {
				d.unwatchDirLocked(filepath.Dir(file))
			}
		}
	}
	d.files = files

	logging.Debug("FilesystemDetector", "Watching %d settings files", len(files))
	return nil
}

// watchDirLocked adds a reference to dir, adding the watch on first use.
func (d *FilesystemDetector) watchDirLocked(dir string) {
	if d.dirs[dir] > 0 {
		d.dirs[dir]++
		return
	}
	if err := d.watcher.Add(dir); err != nil {
		logging.Warn("FilesystemDetector", "Failed to watch directory %s: %v", dir, err)
		return
	}
	d.dirs[dir] = 1
	logging.Debug("FilesystemDetector", "Watching directory: %s", dir)
}

// unwatchDirLocked drops a reference to dir, removing the watch on last use.
func (d *FilesystemDetector) unwatchDirLocked(dir string) {
	n, ok := d.dirs[dir]
	if !ok {
		return
	}
	if n > 1 {
		d.dirs[dir] = n - 1
		return
	}
	delete(d.dirs, dir)
	if err := d.watcher.Remove(dir); err != nil {
		logging.Debug("FilesystemDetector", "Failed to remove watch on %s: %v", dir, err)
	}
}

// processEvents handles filesystem events and generates change events.
func (d *FilesystemDetector) processEvents(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- ChangeEvent) {
	d.mu.RLock()
	stopCh := d.stopCh
	d.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			d.cleanupPendingEvents()
			return

		case <-stopCh:
			d.cleanupPendingEvents()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FilesystemDetector", err, "Filesystem watcher error")
		}
	}
}

// handleFsEvent processes a single filesystem event.
func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	path := cleanPath(event.Name)

	d.mu.RLock()
	watching := d.files[path]
	d.mu.RUnlock()
	if !watching {
		return
	}

	var operation ChangeOperation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		operation = OperationDelete
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// The new name, if watched, triggers its own create
		operation = OperationDelete
	default:
		return
	}

	d.debounceEvent(ChangeEvent{
		Operation: operation,
		Timestamp: time.Now(),
		Source:    SourceFilesystem,
		FilePath:  path,
		Root:      path == d.rootPath,
	}, changes)
}

// debounceEvent implements event debouncing to handle rapid successive changes.
func (d *FilesystemDetector) debounceEvent(event ChangeEvent, changes chan<- ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := event.FilePath

	if entry, ok := d.pendingEvents[key]; ok {
		entry.timer.Stop()
		event.Operation = mergeOperations(entry.operation, event.Operation)
	}

	timer := time.AfterFunc(d.debounceInterval, func() {
		d.mu.Lock()
		entry, ok := d.pendingEvents[key]
		if ok {
			delete(d.pendingEvents, key)
		}
		d.mu.Unlock()

		if ok {
			select {
			case changes <- entry.event:
				logging.Debug("FilesystemDetector", "Emitted change event: %s %s",
					entry.event.Operation, entry.event.FilePath)
			default:
				logging.Warn("FilesystemDetector", "Change event channel full, dropping event for %s",
					entry.event.FilePath)
			}
		}
	})

	d.pendingEvents[key] = &debounceEntry{
		event:     event,
		timer:     timer,
		operation: event.Operation,
	}
}

// mergeOperations merges two operations into a single logical operation.
func mergeOperations(old, new ChangeOperation) ChangeOperation {
	if old == OperationCreate {
		if new == OperationDelete {
			return OperationDelete
		}
		return OperationCreate
	}

	if old == OperationUpdate && new == OperationDelete {
		return OperationDelete
	}

	return new
}

// cleanupPendingEvents cancels all pending debounce timers.
func (d *FilesystemDetector) cleanupPendingEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.pendingEvents {
		entry.timer.Stop()
	}
	d.pendingEvents = make(map[string]*debounceEntry)
}

// Stop gracefully stops the filesystem detector.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false
	close(d.stopCh)

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			logging.Error("FilesystemDetector", err, "Error closing filesystem watcher")
		}
		d.watcher = nil
	}

	logging.Info("FilesystemDetector", "Stopped filesystem detector")
	return nil
}

// GetSource returns the change source type.
func (d *FilesystemDetector) GetSource() ChangeSource {
	return SourceFilesystem
}

// WatchedFiles returns the number of watched files, the root included.
func (d *FilesystemDetector) WatchedFiles() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.files)
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
