// Package lock serializes plan commits with MySQL advisory locks.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout means another session kept the lock for the whole wait.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// GET_LOCK wait times, in seconds.
const (
	TimeoutImmediate = 0
	TimeoutShort     = 1
)

const (
	lockPrefix    = "entityplan:plan:"
	maxNameLength = 64 // MySQL limit on lock names
	releaseWait   = 5 * time.Second
)

// Querier runs single-row queries. Advisory locks belong to a session, so a
// lock held across statements needs a *sql.Conn rather than a pool.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AdvisoryLock is one named GET_LOCK lock. MySQL drops it when the owning
// session ends.
type AdvisoryLock struct {
	q    Querier
	name string
	held bool
}

// NewAdvisoryLock returns an unacquired lock called name.
func NewAdvisoryLock(q Querier, name string) *AdvisoryLock {
	return &AdvisoryLock{q: q, name: name}
}

// NewStoreLock returns the lock guarding commits to the named plan store.
func NewStoreLock(q Querier, store string) *AdvisoryLock {
	return NewAdvisoryLock(q, GenerateLockName(store))
}

// LockName returns the MySQL name of the lock.
func (a *AdvisoryLock) LockName() string { return a.name }

// IsHeld reports whether this instance holds the lock.
func (a *AdvisoryLock) IsHeld() bool { return a.held }

// queryFlag runs a lock function returning 1, 0 or NULL.
func (a *AdvisoryLock) queryFlag(ctx context.Context, fn, query string, args ...any) (sql.NullInt64, error) {
	var v sql.NullInt64
	if err := a.q.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return v, fmt.Errorf("failed to execute %s: %w", fn, err)
	}
	if v.Valid && v.Int64 != 0 && v.Int64 != 1 {
		return v, fmt.Errorf("unexpected %s return value: %d", fn, v.Int64)
	}
	return v, nil
}

// AcquireLock waits up to timeoutSeconds for the lock. A timeout is
// reported as (false, nil); NULL from GET_LOCK is an error.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}
	if a.q == nil {
		return false, errors.New("advisory lock has no connection")
	}

	v, err := a.queryFlag(ctx, "GET_LOCK", "SELECT GET_LOCK(?, ?)", a.name, timeoutSeconds)
	if err != nil {
		return false, err
	}
	if !v.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q", a.name)
	}
	a.held = v.Int64 == 1
	return a.held, nil
}

// TryAcquire takes the lock only if it is free right now.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail is AcquireLock with a timeout turned into ErrLockTimeout.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context, timeoutSeconds int) error {
	ok, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: lock %q is held by another process", ErrLockTimeout, a.name)
	}
	return nil
}

// ReleaseLock gives the lock back. It reports false when this session did
// not own it. After any answer from MySQL the lock counts as not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	v, err := a.queryFlag(ctx, "RELEASE_LOCK", "SELECT RELEASE_LOCK(?)", a.name)
	if err != nil {
		return false, err
	}
	a.held = false
	if !v.Valid {
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.name)
	}
	return v.Int64 == 1, nil
}

// WithLock runs fn holding the lock and releases it afterwards, also when
// fn panics. Release errors go to onReleaseError if it is set.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error, onReleaseError func(error)) error {
	if err := a.AcquireOrFail(ctx, timeoutSeconds); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	defer func() {
		// ctx may be done by now.
		rctx, cancel := context.WithTimeout(context.Background(), releaseWait)
		defer cancel()
		if _, err := a.ReleaseLock(rctx); err != nil && onReleaseError != nil {
			onReleaseError(err)
		}
	}()

	return fn()
}

// GenerateLockName maps a store name to "entityplan:plan:<store>", with
// characters outside [A-Za-z0-9_-] replaced by '_' and the whole name cut
// to 64 bytes.
func GenerateLockName(store string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, store)

	name := lockPrefix + clean
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// IsLocked reports whether some other session holds the store lock. It
// probes with a zero-wait GET_LOCK, so the answer may be stale at once.
func IsLocked(ctx context.Context, q Querier, store string) (bool, error) {
	l := NewStoreLock(q, store)
	ok, err := l.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check lock for store %q: %w", store, err)
	}
	if !ok {
		return true, nil
	}
	_, _ = l.ReleaseLock(ctx)
	return false, nil
}
