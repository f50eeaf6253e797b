package reconciler

import (
	"context"
	"sync"

	"botherd/internal/instances"
)

// workQueue implements ReconcileQueue for a single consumer.
//
// There is only ever one kind of work, reconciling the root document, so
// the queue holds at most one pending request; everything added while one
// is pending is merged into it. A request added while another is being
// processed waits until Done.
type workQueue struct {
	mu sync.Mutex

	// pending is the next request, nil when there is none
	pending *ReconcileRequest

	// processing is true between Get and Done
	processing bool

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

// NewQueue creates a new reconciliation queue.
func NewQueue() ReconcileQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add queues req or merges it into the pending request.
func (q *workQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	if q.pending != nil {
		q.pending.merge(req)
		return
	}

	// Copy the restart set; the caller may keep using its map.
	r := ReconcileRequest{Reason: req.Reason, Source: req.Source, Coalesced: req.Coalesced}
	for id := range req.Restart {
		if r.Restart == nil {
			r.Restart = make(map[instances.Identity]struct{}, len(req.Restart))
		}
		r.Restart[id] = struct{}{}
	}
	q.pending = &r
	q.cond.Signal()
}

// Get retrieves the next request, blocking if necessary.
func (q *workQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for (q.pending == nil || q.processing) && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return ReconcileRequest{}, false
		default:
		}

		// Wake the cond wait when ctx is cancelled. Closing done releases the
		// helper goroutine on a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return ReconcileRequest{}, false
		default:
		}
	}

	if q.shuttingDown {
		return ReconcileRequest{}, false
	}

	req := *q.pending
	q.pending = nil
	q.processing = true

	return req, true
}

// Done marks the current request as completed.
func (q *workQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.processing = false
	if q.pending != nil {
		q.cond.Signal()
	}
}

// Len returns the queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return 0
	}
	return 1
}

// Shutdown stops the queue. Pending work is dropped.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}
