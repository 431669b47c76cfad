// Package artifact stores intermediate node outputs keyed by Fingerprint.
//
// A cached artifact is created on the first successful execution of a node,
// read on every later execution whose Fingerprint matches, and only ever
// replaced as a whole, never mutated in place.
package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"segweaver/internal/core"
	"segweaver/internal/table"
)

// Entry is one cached node output.
type Entry struct {
	// Key is the Fingerprint that identifies this entry.
	Key core.Fingerprint

	// Node is the name of the node that produced the payload. Informational.
	Node string

	// Frame is the cached payload.
	Frame *table.Frame
}

// Store provides storage and retrieval of node outputs.
//
//   - If a Fingerprint has been stored before, the node MUST NOT be recomputed.
//   - A stored payload is returned exactly as it was written.
//   - A payload that cannot be decoded into a Frame is reported as
//     core.ErrCacheCorrupt, never as a miss.
type Store interface {
	// Has checks if an entry exists for key.
	Has(ctx context.Context, key core.Fingerprint) (bool, error)

	// Get retrieves the entry for key.
	// Returns nil, nil if the entry does not exist.
	Get(ctx context.Context, key core.Fingerprint) (*Entry, error)

	// Put stores entry, replacing any previous entry with the same key.
	Put(ctx context.Context, entry *Entry) error
}

func validateEntry(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	if entry.Key == "" {
		return fmt.Errorf("cache entry has no key")
	}
	if entry.Frame == nil {
		return fmt.Errorf("cache entry %s has no frame", entry.Key.Short())
	}
	return nil
}

func corrupt(key core.Fingerprint, format string, args ...any) error {
	return core.Errorf(core.ErrCacheCorrupt, "artifact "+key.Short(), format, args...)
}

// MemoryStore implements Store in process memory.
// Useful for tests and short-lived processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[core.Fingerprint]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[core.Fingerprint]*Entry)}
}

func (s *MemoryStore) Has(_ context.Context, key core.Fingerprint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, key core.Fingerprint) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent mutation.
	return &Entry{Key: e.Key, Node: e.Node, Frame: e.Frame.Clone()}, nil
}

func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = &Entry{Key: entry.Key, Node: entry.Node, Frame: entry.Frame.Clone()}
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStore) Keys() []core.Fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Fingerprint, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
