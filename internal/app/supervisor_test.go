package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botherd/internal/config"
	"botherd/internal/instances"
)

type stubWorker struct {
	stops atomic.Int32
}

func (w *stubWorker) Stop(ctx context.Context) error {
	w.stops.Add(1)
	return nil
}

type stubStarter struct {
	mu      sync.Mutex
	workers []*stubWorker
}

func (s *stubStarter) Start(ctx context.Context, settingsPath, alias string, n instances.Notifier) (instances.Worker, error) {
	if _, err := os.Stat(settingsPath); err != nil {
		return nil, instances.NewMissingConfigurationError(alias, settingsPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &stubWorker{}
	s.workers = append(s.workers, w)
	return w, nil
}

func (s *stubStarter) all() []*stubWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*stubWorker(nil), s.workers...)
}

type recordedStates struct {
	mu     sync.Mutex
	states []string
}

func (r *recordedStates) notify(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordedStates) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestSupervisor(t *testing.T, settingsPath string) (*Supervisor, *stubStarter, *recordedStates) {
	t.Helper()
	bc := config.GetDefaultConfig()
	bc.Settings = settingsPath
	bc.LogPath = ""
	bc.Watch.Disabled = true
	bc.Daemon.StopTimeout = time.Second

	s := NewSupervisor(&Config{BotherdConfig: &bc})
	starter := &stubStarter{}
	states := &recordedStates{}
	s.starter = starter
	s.notify = states.notify
	s.checkDaemon = func(explicit, name, baseDir string) (string, error) {
		return "/usr/local/bin/ogamed", nil
	}
	return s, starter, states
}

func TestSupervisor_RunAndShutdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{}`), 0o644))
	root := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(root, []byte(`{"Instances": [
		{"Settings": "a.json", "Alias": "A"},
		{"Settings": "b.json", "Alias": "B"},
		{"Settings": "missing.json", "Alias": "C"}
	]}`), 0o644))

	s, starter, states := newTestSupervisor(t, root)
	assert.Equal(t, StateStarting, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("Run returned before ready: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor never became ready")
	}

	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, 2, s.Services().Registry.Len())
	assert.Equal(t, []string{"READY=1"}, states.get())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not shut down")
	}

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 0, s.Services().Registry.Len())
	assert.Equal(t, []string{"READY=1", "STOPPING=1"}, states.get())
	for _, w := range starter.all() {
		assert.EqualValues(t, 1, w.stops.Load())
	}
}

func TestSupervisor_ReloadSignalReconciles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{}`), 0o644))
	root := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(root, []byte(`{"Instances": [{"Settings": "a.json", "Alias": "A"}]}`), 0o644))

	s, starter, _ := newTestSupervisor(t, root)
	hup := make(chan os.Signal, 1)
	s.reloadSignals = func() (<-chan os.Signal, func()) { return hup, func() {} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor never became ready")
	}
	require.Equal(t, 1, s.Services().Registry.Len())

	// Watching is disabled, so only the signal picks up the edit.
	require.NoError(t, os.WriteFile(root, []byte(`{"Instances": [
		{"Settings": "a.json", "Alias": "A"},
		{"Settings": "b.json", "Alias": "B"}
	]}`), 0o644))
	hup <- syscall.SIGHUP

	require.Eventually(t, func() bool {
		return s.Services().Registry.Len() == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, starter.all(), 2)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not shut down")
	}
}

func TestSupervisor_MissingSettingsIsFatal(t *testing.T) {
	s, starter, states := newTestSupervisor(t, filepath.Join(t.TempDir(), "settings.json"))

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSettingsNotFound))
	assert.Equal(t, StateStopped, s.State())
	assert.Empty(t, starter.all())
	assert.Empty(t, states.get())
}

func TestSupervisor_MissingDaemonIsFatal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(root, []byte(`{}`), 0o644))

	s, starter, _ := newTestSupervisor(t, root)
	s.checkDaemon = func(explicit, name, baseDir string) (string, error) {
		return "", errors.New("ogamed is neither next to botherd nor on PATH")
	}

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "companion daemon check failed")
	assert.Empty(t, starter.all())
}

func TestSupervisor_UnparsableSettingsIsFatal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(root, []byte(`{"Instances": [`), 0o644))

	s, starter, states := newTestSupervisor(t, root)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial reconciliation failed")
	assert.Empty(t, starter.all())
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, []string{"STOPPING=1"}, states.get())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Starting", StateStarting.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "ShuttingDown", StateShuttingDown.String())
	assert.Equal(t, "Stopped", StateStopped.String())
	assert.Equal(t, "Unknown", State(42).String())
}
