// Package store persists plan snapshots between planning runs.
//
// Every backend loads the latest committed snapshot and commits a new one
// all-or-nothing. A commit is accepted only when next.Version directly
// follows the stored version, so two planners racing on the same store
// cannot silently overwrite each other.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/entityplan/internal/config"
	"github.com/dbsmedya/entityplan/internal/database"
	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
)

// ErrConflict is returned by Commit when the stored snapshot changed since
// the caller loaded it.
var ErrConflict = errors.New("plan store modified concurrently")

// Store loads and commits plan snapshots.
type Store interface {
	// Load returns the latest committed snapshot, or an empty snapshot when
	// nothing has been committed yet.
	Load(ctx context.Context) (*plan.Snapshot, error)
	// Commit replaces the stored snapshot with next. changes lists the rows
	// that differ; backends that store rows individually apply only those.
	Commit(ctx context.Context, next *plan.Snapshot, changes plan.Changeset) error
	Close() error
}

// Open builds the store configured in cfg.Store.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	sc := cfg.Store

	switch sc.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil

	case config.BackendFile:
		return NewFileStore(sc.File.Path), nil

	case config.BackendMySQL:
		m := database.NewManager(&sc.MySQL)
		if err := m.Connect(ctx); err != nil {
			return nil, err
		}
		s, err := NewMySQLStore(m.DB, MySQLOptions{
			Name:               sc.MySQL.Database + "_" + sc.MySQL.TablePrefix,
			TablePrefix:        sc.MySQL.TablePrefix,
			LockTimeoutSeconds: sc.MySQL.LockTimeoutSeconds,
		}, log)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		s.closer = m
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case config.BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			URL:            sc.Redis.URL,
			KeyPrefix:      sc.Redis.KeyPrefix,
			ConnectTimeout: time.Duration(sc.Redis.ConnectTimeoutSeconds) * time.Second,
		}, log)
	}

	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// checkVersion enforces that next directly follows the stored version.
func checkVersion(stored int64, next *plan.Snapshot) error {
	if next.Version != stored+1 {
		return fmt.Errorf("%w: stored version %d, committing version %d", ErrConflict, stored, next.Version)
	}
	return nil
}
