package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dbsmedya/entityplan/internal/plan"
)

// FileStore keeps the snapshot as a JSON document. Writes go to a temporary
// file in the same directory which is synced and renamed over the target,
// so readers never observe a partial snapshot.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The file and its
// directory are created on first commit.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (f *FileStore) Load(context.Context) (*plan.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileStore) read() (*plan.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return plan.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("read plan file %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return plan.NewSnapshot(), nil
	}

	var s plan.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode plan file %s: %w", f.path, err)
	}
	return s.Normalize(), nil
}

// Commit writes next atomically.
func (f *FileStore) Commit(_ context.Context, next *plan.Snapshot, _ plan.Changeset) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if err != nil {
		return err
	}
	if err := checkVersion(current.Version, next); err != nil {
		return err
	}
	return f.write(next)
}

func (f *FileStore) write(s *plan.Snapshot) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plan directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp plan file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fail(fmt.Errorf("encode plan: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync plan file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close plan file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace plan file %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op; the file is not held open between calls.
func (f *FileStore) Close() error {
	return nil
}
