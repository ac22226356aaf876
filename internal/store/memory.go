package store

import (
	"context"
	"errors"
	"sync"

	"github.com/dbsmedya/entityplan/internal/plan"
)

// MemoryStore keeps the snapshot in process. Snapshots are deep-copied on
// the way in and out.
type MemoryStore struct {
	mu     sync.Mutex
	snap   *plan.Snapshot
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: plan.NewSnapshot()}
}

// Load returns a copy of the stored snapshot.
func (m *MemoryStore) Load(context.Context) (*plan.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("memory store is closed")
	}
	return m.snap.Clone(), nil
}

// Commit stores a copy of next.
func (m *MemoryStore) Commit(_ context.Context, next *plan.Snapshot, _ plan.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("memory store is closed")
	}
	if err := checkVersion(m.snap.Version, next); err != nil {
		return err
	}
	m.snap = next.Clone()
	return nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
