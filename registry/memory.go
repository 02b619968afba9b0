package registry

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Memory is an in-memory Registry. Readers never lock: every write builds a
// new map and publishes it atomically.
type Memory struct {
	mu      sync.Mutex
	records atomic.Pointer[map[string]ServiceRecord]
}

// NewMemory returns a Memory registry holding records.
func NewMemory(records ...ServiceRecord) (*Memory, error) {
	m := &Memory{}
	if err := m.Replace(records); err != nil {
		return nil, err
	}

	return m, nil
}

// Lookup implements Registry.
func (m *Memory) Lookup(_ context.Context, id string) (*ServiceRecord, error) {
	if !ValidIdentity(id) {
		return nil, ErrInvalidIdentity
	}

	records := m.records.Load()
	if records == nil {
		return nil, ErrNotFound
	}

	rec, ok := (*records)[id]
	if !ok {
		return nil, ErrNotFound
	}

	clone := rec.Clone()

	return &clone, nil
}

// Put adds or replaces a record.
func (m *Memory) Put(rec ServiceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.snapshot()
	next[rec.ID] = rec.Clone()
	m.records.Store(&next)

	return nil
}

// Delete removes the record for id. It reports whether a record was removed.
func (m *Memory) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.snapshot()
	if _, ok := next[id]; !ok {
		return false
	}

	delete(next, id)
	m.records.Store(&next)

	return true
}

// Replace atomically swaps the whole record set. Nothing changes when any
// record is invalid.
func (m *Memory) Replace(records []ServiceRecord) error {
	if err := validateSet(records); err != nil {
		return err
	}

	next := make(map[string]ServiceRecord, len(records))
	for _, rec := range records {
		next[rec.ID] = rec.Clone()
	}

	m.mu.Lock()
	m.records.Store(&next)
	m.mu.Unlock()

	return nil
}

// List returns all records sorted by identity.
func (m *Memory) List() []ServiceRecord {
	records := m.records.Load()
	if records == nil {
		return nil
	}

	out := make([]ServiceRecord, 0, len(*records))
	for _, rec := range *records {
		out = append(out, rec.Clone())
	}

	slices.SortFunc(out, func(a, b ServiceRecord) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out
}

// snapshot returns the current record map. Callers must not modify it.
func (m *Memory) snapshot() map[string]ServiceRecord {
	current := m.records.Load()
	if current == nil {
		return make(map[string]ServiceRecord)
	}

	return maps.Clone(*current)
}
