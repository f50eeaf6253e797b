package instances

import (
	"fmt"
	"sync"
)

// Registry is the authoritative set of committed instances.
//
// The record slice is never mutated after it is stored; Replace swaps in a
// new slice, so Snapshot and FindByIdentity only hold the read lock for a
// pointer copy and never wait on a reconciliation in progress.
type Registry struct {
	mu      sync.RWMutex
	records []Record
	index   map[Identity]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[Identity]int),
	}
}

// Snapshot returns a copy of the committed records in commit order.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	records := r.records
	r.mu.RUnlock()

	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Replace atomically swaps the committed set. Records must be unique by
// identity; on duplicates nothing is replaced.
func (r *Registry) Replace(records []Record) error {
	index := make(map[Identity]int, len(records))
	next := make([]Record, len(records))
	for i, rec := range records {
		if rec.Identity == "" {
			return fmt.Errorf("record %d has empty identity", i)
		}
		if _, exists := index[rec.Identity]; exists {
			return fmt.Errorf("identity %s appears more than once", rec.Identity)
		}
		index[rec.Identity] = i
		next[i] = rec
	}

	r.mu.Lock()
	r.records = next
	r.index = index
	r.mu.Unlock()
	return nil
}

// FindByIdentity returns the committed record for id.
func (r *Registry) FindByIdentity(id Identity) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Record{}, false
	}
	return r.records[i], true
}

// Len returns the number of committed records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
