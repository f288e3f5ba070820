package progress

import (
	"context"
	"sync"
)

// MemoryStore is the default in-process progress store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: map[string]Snapshot{}}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, jobID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[jobID]
	if !ok {
		return Snapshot{JobID: jobID, Status: StatusRunning}, nil
	}
	return snap, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, jobID string, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[jobID]
	if !ok {
		snap = Snapshot{JobID: jobID, Status: StatusRunning}
	}
	snap.apply(update)
	s.snapshots[jobID] = snap

	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, jobID)

	return nil
}
