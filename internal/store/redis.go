package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string
	// KeyPrefix namespaces the store's keys.
	KeyPrefix string
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
}

// RedisStore keeps the snapshot as one JSON value next to a generation
// counter holding its version. Commits WATCH the counter and write both in
// a MULTI/EXEC transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions, log *logger.Logger) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "entityplan"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.KeyPrefix, log: log}, nil
}

func (r *RedisStore) snapshotKey() string   { return r.prefix + ":snapshot" }
func (r *RedisStore) generationKey() string { return r.prefix + ":generation" }
func (r *RedisStore) lastCommitKey() string { return r.prefix + ":last_commit" }

// Load reads the snapshot. A missing key yields an empty snapshot.
func (r *RedisStore) Load(ctx context.Context) (*plan.Snapshot, error) {
	data, err := r.client.Get(ctx, r.snapshotKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return plan.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", r.snapshotKey(), err)
	}

	var s plan.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", r.snapshotKey(), err)
	}
	return s.Normalize(), nil
}

// Commit writes next if the generation counter still matches the version
// next was planned against.
func (r *RedisStore) Commit(ctx context.Context, next *plan.Snapshot, changes plan.Changeset) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, r.generationKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read generation: %w", err)
		}
		if err := checkVersion(stored, next); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.snapshotKey(), data, 0)
			pipe.Set(ctx, r.generationKey(), next.Version, 0)
			pipe.HSet(ctx, r.lastCommitKey(),
				"version", next.Version,
				"changes", changes.Summary(),
				"committed_at", time.Now().UTC().Format(time.RFC3339))
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txf, r.generationKey())
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: generation changed during commit", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	r.log.Debugw("Plan committed",
		"version", next.Version,
		"changes", changes.Summary())
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
