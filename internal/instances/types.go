package instances

import (
	"context"
	"path/filepath"
	"time"
)

// Identity is the resolved absolute path of an instance's settings file.
//
// Two descriptors resolving to the same path are the same logical instance,
// whatever their aliases say.
type Identity string

// NewIdentity cleans path and makes it absolute.
func NewIdentity(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return Identity(filepath.Clean(abs)), nil
}

// Path returns the settings file path behind the identity.
func (i Identity) Path() string {
	return string(i)
}

// Notifier is the side channel handed to workers for their own messages.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Worker is a running bot instance.
type Worker interface {
	// Stop terminates the instance. Calling it more than once is safe; only
	// the first call does any work.
	Stop(ctx context.Context) error
}

// Starter creates workers.
type Starter interface {
	// Start launches the instance configured by settingsPath. It returns an
	// error matching ErrMissingConfiguration when settingsPath does not exist.
	Start(ctx context.Context, settingsPath, alias string, notifier Notifier) (Worker, error)
}

// StarterFunc adapts a function to the Starter interface.
type StarterFunc func(ctx context.Context, settingsPath, alias string, notifier Notifier) (Worker, error)

// Start calls f.
func (f StarterFunc) Start(ctx context.Context, settingsPath, alias string, notifier Notifier) (Worker, error) {
	return f(ctx, settingsPath, alias, notifier)
}

// Record is one committed instance.
type Record struct {
	Identity  Identity
	Alias     string
	Worker    Worker
	StartedAt time.Time
}

// WithAlias returns a copy of r labelled alias. The worker is shared.
func (r Record) WithAlias(alias string) Record {
	r.Alias = alias
	return r
}
