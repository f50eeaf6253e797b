package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"botherd/internal/instances"
	"botherd/internal/template"
	"botherd/pkg/logging"
)

// Options configures a ProcessStarter.
type Options struct {
	// DaemonPath is the companion executable.
	DaemonPath string

	// Args are rendered per instance with .SettingsPath, .SettingsDir and .Alias.
	Args []string

	// StartGrace is how long a process has to stay alive for its start to count.
	StartGrace time.Duration

	// StopTimeout bounds the graceful part of Stop.
	StopTimeout time.Duration

	// StartedMessage and StoppedMessage are rendered with .Alias and sent
	// through the instance notifier. Empty disables the message.
	StartedMessage string
	StoppedMessage string

	// Templates renders arguments and messages. A new engine is used when nil.
	Templates *template.Engine
}

// ProcessStarter starts instances as child processes. It implements
// instances.Starter.
type ProcessStarter struct {
	opts Options
}

var _ instances.Starter = (*ProcessStarter)(nil)

// NewProcessStarter creates a starter for the given daemon.
func NewProcessStarter(opts Options) *ProcessStarter {
	if opts.Templates == nil {
		opts.Templates = template.New()
	}
	return &ProcessStarter{opts: opts}
}

// Start launches the daemon for one instance and waits out the start grace.
func (s *ProcessStarter) Start(ctx context.Context, settingsPath, alias string, notifier instances.Notifier) (instances.Worker, error) {
	if _, err := os.Stat(settingsPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, instances.NewMissingConfigurationError(alias, settingsPath)
		}
		return nil, fmt.Errorf("failed to inspect settings for instance %q: %w", alias, err)
	}

	values := map[string]interface{}{
		"SettingsPath": settingsPath,
		"SettingsDir":  filepath.Dir(settingsPath),
		"Alias":        alias,
	}
	args, err := s.opts.Templates.RenderAll(s.opts.Args, values)
	if err != nil {
		return nil, fmt.Errorf("failed to render daemon arguments for instance %q: %w", alias, err)
	}

	// The process outlives the start context, so it is not bound to ctx.
	cmd := exec.Command(s.opts.DaemonPath, args...)
	cmd.Dir = filepath.Dir(settingsPath)
	configureProcAttr(cmd)
	if s.opts.StopTimeout > 0 {
		cmd.WaitDelay = s.opts.StopTimeout
	}

	output := newOutputForwarder(alias)
	cmd.Stdout = output.stdoutWriter
	cmd.Stderr = output.stderrWriter

	logging.Debug("Worker", "Starting %s %v for instance %s", s.opts.DaemonPath, args, alias)
	if err := cmd.Start(); err != nil {
		output.close()
		return nil, fmt.Errorf("failed to start daemon for instance %q: %w", alias, err)
	}

	p := &Process{
		alias:       alias,
		settings:    settingsPath,
		cmd:         cmd,
		output:      output,
		exited:      make(chan struct{}),
		stopping:    make(chan struct{}),
		stopTimeout: s.opts.StopTimeout,
		notifier:    notifier,
		message:     s.message,
		stopped:     s.opts.StoppedMessage,
	}
	go p.wait()

	if err := p.awaitGrace(ctx, s.opts.StartGrace); err != nil {
		return nil, err
	}

	logging.Info("Worker", "Instance %s running (pid %d)", alias, cmd.Process.Pid)
	p.notify(ctx, s.opts.StartedMessage)
	go p.watch()

	return p, nil
}

func (s *ProcessStarter) message(text, alias string) (string, error) {
	return s.opts.Templates.Render(text, map[string]interface{}{"Alias": alias})
}

// Process is a running companion daemon.
type Process struct {
	alias    string
	settings string
	cmd      *exec.Cmd
	output   *outputForwarder

	exited  chan struct{}
	waitErr error

	stopping    chan struct{}
	stopOnce    sync.Once
	stopErr     error
	stopTimeout time.Duration

	notifier instances.Notifier
	message  func(text, alias string) (string, error)
	stopped  string
}

var _ instances.Worker = (*Process)(nil)

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Stop terminates the process group. Only the first call acts; later calls
// return the first result.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopping)
		p.stopErr = p.terminate(ctx)
		p.output.close()
		if p.stopErr == nil {
			logging.Info("Worker", "Instance %s stopped", p.alias)
		}
		p.notify(ctx, p.stopped)
	})
	return p.stopErr
}

func (p *Process) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

// watch reports processes that die on their own.
func (p *Process) watch() {
	select {
	case <-p.stopping:
	case <-p.exited:
		select {
		case <-p.stopping:
			return
		default:
		}
		if p.waitErr != nil {
			logging.Warn("Worker", "Instance %s exited unexpectedly: %v", p.alias, p.waitErr)
		} else {
			logging.Warn("Worker", "Instance %s exited unexpectedly", p.alias)
		}
	}
}

func (p *Process) awaitGrace(ctx context.Context, grace time.Duration) error {
	var timer <-chan time.Time
	if grace > 0 {
		t := time.NewTimer(grace)
		defer t.Stop()
		timer = t.C
	} else {
		ready := make(chan time.Time)
		close(ready)
		timer = ready
	}

	select {
	case <-timer:
		return nil
	case <-p.exited:
		p.output.close()
		return p.earlyExitError()
	case <-ctx.Done():
		_ = p.kill()
		<-p.exited
		p.output.close()
		return fmt.Errorf("start of instance %q aborted: %w", p.alias, ctx.Err())
	}
}

func (p *Process) earlyExitError() error {
	err := fmt.Errorf("instance %q exited during startup", p.alias)
	if p.waitErr != nil {
		err = fmt.Errorf("instance %q exited during startup: %w", p.alias, p.waitErr)
	}
	if tail := p.output.lastLines(); tail != "" {
		err = fmt.Errorf("%w\n%s", err, tail)
	}
	return err
}

func (p *Process) terminate(ctx context.Context) error {
	select {
	case <-p.exited:
		return nil
	default:
	}

	pid := p.Pid()
	logging.Debug("Worker", "Stopping instance %s (pid %d)", p.alias, pid)
	if err := signalTerminate(pid); err != nil {
		logging.Debug("Worker", "Graceful stop signal failed for %s: %v", p.alias, err)
	}

	var timeout <-chan time.Time
	if p.stopTimeout > 0 {
		t := time.NewTimer(p.stopTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-p.exited:
		// Take down anything the daemon left behind in its group.
		_ = signalKill(pid)
		return nil
	case <-timeout:
		logging.Warn("Worker", "Instance %s did not stop within %s, killing process group", p.alias, p.stopTimeout)
	case <-ctx.Done():
		logging.Warn("Worker", "Stop of instance %s interrupted, killing process group", p.alias)
	}

	if err := p.kill(); err != nil {
		return fmt.Errorf("failed to kill instance %q: %w", p.alias, err)
	}
	<-p.exited
	return nil
}

func (p *Process) kill() error {
	return signalKill(p.Pid())
}

func (p *Process) notify(ctx context.Context, text string) {
	if text == "" || p.notifier == nil {
		return
	}
	msg, err := p.message(text, p.alias)
	if err != nil {
		logging.Error("Worker", err, "Failed to render message for instance %s", p.alias)
		return
	}
	if err := p.notifier.Notify(ctx, msg); err != nil {
		logging.Warn("Worker", "Failed to notify for instance %s: %v", p.alias, err)
	}
}
