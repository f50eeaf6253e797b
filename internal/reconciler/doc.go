// Package reconciler keeps the running instances in line with the settings
// document.
//
// # Overview
//
// The Engine diffs a parsed settings document against the instance registry
// and applies the difference: instances that disappeared are stopped, new
// ones are started, and instances that are still listed keep running with
// whatever alias the document now gives them. The new set is committed to
// the registry in one swap.
//
// # Architecture
//
//   - Engine: the diff and the stop/start sequencing, serialized by a mutex
//   - FilesystemDetector: fsnotify watch on the root document and every
//     instance settings file, debounced
//   - ReconcileQueue: holds at most one pending request and merges later ones
//     into it
//   - Manager: one consumer goroutine that loads the document and calls the
//     engine for every queued request
//
// A change to the root document reconciles it. A change to an instance's
// own settings file reconciles too and restarts that instance.
//
// # Ordering
//
// All stops finish before the first start. Starts run concurrently, bounded
// by EngineConfig.MaxConcurrentStarts and each by EngineConfig.StartTimeout.
// A failed start leaves only that instance out of the registry.
//
// Example usage:
//
//	engine := reconciler.NewEngine(reconciler.EngineConfig{Starter: starter})
//	manager := reconciler.NewManager(reconciler.ManagerConfig{SettingsPath: path}, engine)
//	if _, err := manager.ReconcileNow(ctx, nil); err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start watching: %w", err)
//	}
//	defer manager.Stop()
package reconciler
