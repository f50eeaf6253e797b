package reconciler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"botherd/internal/instances"
	"botherd/internal/settings"
)

// fakeWorker counts its Stop calls.
type fakeWorker struct {
	alias string
	path  string
	stops atomic.Int32
	err   error
}

func (w *fakeWorker) Stop(ctx context.Context) error {
	w.stops.Add(1)
	return w.err
}

// fakeStarter records starts and fails the paths it is told to.
type fakeStarter struct {
	mu       sync.Mutex
	started  []*fakeWorker
	failures map[string]error
	delay    time.Duration
	// blockUntilCancelled makes Start wait for its context.
	blockUntilCancelled bool
	// ignoreContext makes Start sleep delay regardless of its context.
	ignoreContext bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{failures: make(map[string]error)}
}

func (s *fakeStarter) Start(ctx context.Context, settingsPath, alias string, notifier instances.Notifier) (instances.Worker, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxInFlight.Load()
		if n <= max || s.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	if s.blockUntilCancelled {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.delay > 0 {
		if s.ignoreContext {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[settingsPath]; ok {
		return nil, err
	}
	w := &fakeWorker{alias: alias, path: settingsPath}
	s.started = append(s.started, w)
	return w, nil
}

func (s *fakeStarter) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started)
}

func (s *fakeStarter) workers() []*fakeWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fakeWorker, len(s.started))
	copy(out, s.started)
	return out
}

func (s *fakeStarter) fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = err
}

// fakeChannel records messenger applications.
type fakeChannel struct {
	mu       sync.Mutex
	applied  []settings.MessengerSettings
	shutdown int
	err      error
}

func (c *fakeChannel) Apply(ctx context.Context, m settings.MessengerSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, m)
	return c.err
}

func (c *fakeChannel) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown++
}

// settingsDir creates a directory with instance settings files for names.
func settingsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{}`), 0o644))
	}
	return dir
}

// parseDoc parses data as dir/settings.json.
func parseDoc(t *testing.T, dir, data string) *settings.Document {
	t.Helper()
	doc, err := settings.Parse(filepath.Join(dir, "settings.json"), []byte(data))
	require.NoError(t, err)
	return doc
}

// aliases returns the registry aliases in order.
func aliases(r *instances.Registry) []string {
	var out []string
	for _, rec := range r.Snapshot() {
		out = append(out, rec.Alias)
	}
	return out
}

var errBoom = errors.New("boom")
