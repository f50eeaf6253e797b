// Package logging provides the structured logging facade used across botherd.
//
// Records are written through log/slog text handlers. Every entry carries a
// subsystem attribute so console and file output can be filtered per
// component (Bootstrap, Settings, Reconciler, Watcher, Notify, Instance/<alias>).
//
// # Usage
//
//	path, err := logging.InitWithLogFile(logging.LevelInfo, os.Stdout, "./log")
//	if err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Info("Bootstrap", "Writing log file to %s", path)
//	logging.Warn("Reconciler", "Instance %q cannot be initialized", alias)
//	logging.Error("Notify", err, "Failed to send autoping")
//
// InitForCLI configures a single writer and is what tests use with a
// bytes.Buffer. InitWithLogFile additionally appends every record to
// botherd.log inside the given directory, creating the directory on demand.
//
// All functions are safe for concurrent use.
package logging
