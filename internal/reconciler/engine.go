package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"botherd/internal/instances"
	"botherd/internal/settings"
	"botherd/pkg/logging"
)

// EngineConfig holds the engine dependencies.
type EngineConfig struct {
	// Registry receives the committed instance set.
	Registry *instances.Registry

	// Starter launches instances.
	Starter instances.Starter

	// Notifier is handed to every started worker.
	Notifier instances.Notifier

	// Channel is reconfigured from the messenger block of every document.
	// Optional.
	Channel Channel

	// StartTimeout bounds a single start. Zero means unbounded.
	StartTimeout time.Duration

	// MaxConcurrentStarts limits the start fan-out. Zero means unlimited.
	MaxConcurrentStarts int

	// StopTimeout bounds each stop issued by Reconcile. Those stops ignore
	// cancellation of the reconcile context. Zero means unbounded.
	StopTimeout time.Duration

	// Metrics records outcomes. A private instance is used when nil.
	Metrics *ReconcilerMetrics
}

// Engine brings the registry in line with a settings document.
//
// Reconcile and Shutdown hold the reconciliation mutex for their whole
// duration; a second call waits for the first to finish.
type Engine struct {
	mu sync.Mutex

	config  EngineConfig
	metrics *ReconcilerMetrics
}

// NewEngine creates an engine.
func NewEngine(config EngineConfig) *Engine {
	if config.Registry == nil {
		config.Registry = instances.NewRegistry()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NewReconcilerMetrics()
	}
	return &Engine{
		config:  config,
		metrics: metrics,
	}
}

// Registry returns the registry the engine commits to.
func (e *Engine) Registry() *instances.Registry {
	return e.config.Registry
}

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *ReconcilerMetrics {
	return e.metrics
}

// plannedTarget is one desired instance and how to get it running.
type plannedTarget struct {
	target settings.Target
	kept   *instances.Record
	result *instances.Record
}

// Reconcile applies doc. Identities in restart whose instance is kept are
// stopped and started again.
//
// Start failures are logged and leave the identity out of the registry; they
// do not fail the reconciliation. The returned error is reserved for a
// commit that could not be applied.
func (e *Engine) Reconcile(ctx context.Context, doc *settings.Document, restart map[instances.Identity]struct{}) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.metrics.beginReconcile()
	defer func() { e.metrics.endReconcile(time.Since(start)) }()

	summary := Summary{RunID: uuid.NewString()}
	logging.Debug("Reconciler", "Reconciliation %s of %s (%s document)", summary.RunID, doc.Path, doc.Kind)

	if e.config.Channel != nil {
		if err := e.config.Channel.Apply(ctx, doc.Messenger); err != nil {
			logging.Error("Reconciler", err, "Failed to apply Telegram Messenger settings")
		}
	}

	targets := doc.Targets()
	snapshot := e.config.Registry.Snapshot()

	current := make(map[instances.Identity]instances.Record, len(snapshot))
	for _, rec := range snapshot {
		current[rec.Identity] = rec
	}
	desired := make(map[instances.Identity]bool, len(targets))

	plan := make([]*plannedTarget, 0, len(targets))
	var toStop []instances.Record
	for _, t := range targets {
		desired[t.Identity] = true
		summary.Desired = append(summary.Desired, t.Identity)

		p := &plannedTarget{target: t}
		if rec, ok := current[t.Identity]; ok {
			if _, changed := restart[t.Identity]; changed {
				logging.Info("Reconciler", "Settings of instance \"%s\" changed, restarting", rec.Alias)
				toStop = append(toStop, rec)
			} else {
				kept := rec.WithAlias(t.Alias)
				if rec.Alias != t.Alias {
					logging.Info("Reconciler", "Instance \"%s\" renamed to \"%s\"", rec.Alias, t.Alias)
					summary.Renamed++
				}
				p.kept = &kept
				summary.Kept++
			}
		}
		plan = append(plan, p)
	}
	for _, rec := range snapshot {
		if !desired[rec.Identity] {
			toStop = append(toStop, rec)
		}
	}

	// Every stop completes before the first start.
	for _, rec := range toStop {
		e.detachedStop(ctx, rec)
		summary.Deinitialized++
	}

	var g errgroup.Group
	if e.config.MaxConcurrentStarts > 0 {
		g.SetLimit(e.config.MaxConcurrentStarts)
	}
	for _, p := range plan {
		if p.kept != nil {
			continue
		}
		p := p
		g.Go(func() error {
			rec, err := e.start(ctx, p.target)
			if err == nil {
				p.result = &rec
			}
			return nil
		})
	}
	_ = g.Wait()

	committed := make([]instances.Record, 0, len(plan))
	for _, p := range plan {
		switch {
		case p.kept != nil:
			committed = append(committed, *p.kept)
		case p.result != nil:
			committed = append(committed, *p.result)
			summary.Started++
		default:
			summary.Failed++
		}
	}

	if err := e.config.Registry.Replace(committed); err != nil {
		// Nothing started in this run may outlive a rejected commit.
		for _, p := range plan {
			if p.result != nil {
				e.detachedStop(ctx, *p.result)
			}
		}
		return summary, fmt.Errorf("failed to commit instances: %w", err)
	}

	summary.Initialized = len(committed)
	summary.Duration = time.Since(start)

	logging.Info("Reconciler", "Instances stats: Initialized %d - Deinitialized %d", summary.Initialized, summary.Deinitialized)
	logging.Debug("Reconciler", "Reconciliation %s done in %s: started %d, failed %d, kept %d, renamed %d",
		summary.RunID, summary.Duration, summary.Started, summary.Failed, summary.Kept, summary.Renamed)

	return summary, nil
}

// Shutdown stops every committed instance, empties the registry and tears
// the notification channel down.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.config.Registry.Snapshot()
	logging.Info("Reconciler", "Stopping %d instance(s)", len(snapshot))

	errs := make([]error, len(snapshot))
	var wg sync.WaitGroup
	for i, rec := range snapshot {
		wg.Add(1)
		go func(i int, rec instances.Record) {
			defer wg.Done()
			errs[i] = e.stop(ctx, rec)
		}(i, rec)
	}
	wg.Wait()

	if err := e.config.Registry.Replace(nil); err != nil {
		errs = append(errs, err)
	}

	if e.config.Channel != nil {
		e.config.Channel.Shutdown(ctx)
	}

	return errors.Join(errs...)
}

// start launches one instance, bounded by StartTimeout.
func (e *Engine) start(ctx context.Context, t settings.Target) (instances.Record, error) {
	e.metrics.RecordStartAttempt(t.Alias)
	logging.Info("Reconciler", "Initializing instance \"%s\" \"%s\"", t.Alias, t.Identity)

	startCtx := ctx
	if e.config.StartTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, e.config.StartTimeout)
		defer cancel()
	}

	type result struct {
		worker instances.Worker
		err    error
	}
	done := make(chan result, 1)
	go func() {
		w, err := e.config.Starter.Start(startCtx, t.Identity.Path(), t.Alias, e.config.Notifier)
		done <- result{worker: w, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-startCtx.Done():
		// A start that ignores its context is left to finish on its own; a
		// worker it still produces is stopped right away.
		go func() {
			late := <-done
			if late.err == nil && late.worker != nil {
				_ = late.worker.Stop(context.Background())
			}
		}()
		res = result{err: startCtx.Err()}
	}

	if res.err == nil && startCtx.Err() != nil {
		if res.worker != nil {
			_ = res.worker.Stop(context.Background())
		}
		res = result{err: startCtx.Err()}
	}

	if res.err != nil {
		missing := instances.IsMissingConfiguration(res.err)
		timedOut := errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil
		e.metrics.RecordStartFailure(t.Alias, missing, timedOut)

		switch {
		case missing:
			logging.Warn("Reconciler", "Instance \"%s\" cannot be initialized: %v", t.Alias, res.err)
		case timedOut:
			logging.Error("Reconciler", res.err, "Instance \"%s\" did not start within %s", t.Alias, e.config.StartTimeout)
		default:
			logging.Error("Reconciler", res.err, "Instance \"%s\" failed to start", t.Alias)
		}
		return instances.Record{}, res.err
	}
	if res.worker == nil {
		err := fmt.Errorf("starter returned no worker for instance %q", t.Alias)
		e.metrics.RecordStartFailure(t.Alias, false, false)
		logging.Error("Reconciler", err, "Instance \"%s\" failed to start", t.Alias)
		return instances.Record{}, err
	}

	e.metrics.RecordStartSuccess(t.Alias)
	return instances.Record{
		Identity:  t.Identity,
		Alias:     t.Alias,
		Worker:    res.worker,
		StartedAt: time.Now(),
	}, nil
}

// detachedStop stops rec with a context that survives cancellation of ctx,
// so the worker still gets its graceful stop window.
func (e *Engine) detachedStop(ctx context.Context, rec instances.Record) error {
	stopCtx := context.WithoutCancel(ctx)
	if e.config.StopTimeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(stopCtx, e.config.StopTimeout)
		defer cancel()
	}
	return e.stop(stopCtx, rec)
}

// stop terminates one instance and waits for it.
func (e *Engine) stop(ctx context.Context, rec instances.Record) error {
	logging.Info("Reconciler", "Deinitializing instance \"%s\" \"%s\"", rec.Alias, rec.Identity)

	err := rec.Worker.Stop(ctx)
	e.metrics.RecordStop(rec.Alias, err)
	if err != nil {
		logging.Error("Reconciler", err, "Instance \"%s\" did not stop cleanly", rec.Alias)
		return fmt.Errorf("failed to stop instance %q: %w", rec.Alias, err)
	}
	return nil
}
