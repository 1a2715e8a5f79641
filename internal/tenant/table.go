package tenant

import (
	"crypto/subtle"
	"errors"
	"sync"
)

var (
	// ErrUnknownInstance means the instance ID is not in the table.
	ErrUnknownInstance = errors.New("unknown instance")
	// ErrInvalidAPIKey means the presented key does not match the
	// instance's stored hash.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Table is the concurrency-safe tenant routing table. Lookups are
// read-locked and never block each other; only the infrequent refresh takes
// the write lock, so readers never observe a partially-updated record.
type Table struct {
	mu      sync.RWMutex
	records map[string]Record
	loaded  bool

	// evict is invoked outside the lock for every instance that is removed
	// or leaves the running state during a refresh. The pool manager hooks
	// this to tear down the instance's connections.
	evict func(instanceID string)
}

func NewTable() *Table {
	return &Table{records: map[string]Record{}}
}

// OnEvict registers the hook called when an instance disappears or stops.
// Must be set before the first refresh.
func (t *Table) OnEvict(fn func(instanceID string)) {
	t.evict = fn
}

// Lookup returns the record for an instance ID.
func (t *Table) Lookup(instanceID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[instanceID]
	return rec, ok
}

// Len returns the number of known instances.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Loaded reports whether at least one snapshot has been applied. Used by
// the readiness probe so the gateway doesn't serve 401s before the first
// successful refresh.
func (t *Table) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// ReplaceAll swaps in a full snapshot from the control plane. Instances that
// vanished or transitioned out of running are reported to the evict hook
// after the lock is released.
func (t *Table) ReplaceAll(records []Record) {
	next := make(map[string]Record, len(records))
	for _, rec := range records {
		next[rec.InstanceID] = rec
	}

	var evicted []string
	t.mu.Lock()
	t.loaded = true
	for id, old := range t.records {
		rec, ok := next[id]
		if !ok || (old.Running() && !rec.Running()) {
			evicted = append(evicted, id)
		}
	}
	t.records = next
	t.mu.Unlock()

	if t.evict != nil {
		for _, id := range evicted {
			t.evict(id)
		}
	}
}

// Upsert inserts or updates a single record, reporting an eviction if the
// instance left the running state.
func (t *Table) Upsert(rec Record) {
	t.mu.Lock()
	old, existed := t.records[rec.InstanceID]
	t.records[rec.InstanceID] = rec
	t.mu.Unlock()

	if t.evict != nil && existed && old.Running() && !rec.Running() {
		t.evict(rec.InstanceID)
	}
}

// Remove deletes an instance and reports the eviction.
func (t *Table) Remove(instanceID string) {
	t.mu.Lock()
	_, existed := t.records[instanceID]
	delete(t.records, instanceID)
	t.mu.Unlock()

	if t.evict != nil && existed {
		t.evict(instanceID)
	}
}

// Authorize resolves (apiKey, instanceID) to the tenant record. The key is
// compared in constant time against the stored hash. Authorization succeeds
// independent of liveness; the dispatcher checks Running separately, keeping
// "may you use this instance" distinct from "is this instance up".
func (t *Table) Authorize(apiKey, instanceID string) (Record, error) {
	rec, ok := t.Lookup(instanceID)
	if !ok {
		return Record{}, ErrUnknownInstance
	}
	presented := HashAPIKey(apiKey)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(rec.APIKeyHash)) != 1 {
		return Record{}, ErrInvalidAPIKey
	}
	return rec, nil
}
