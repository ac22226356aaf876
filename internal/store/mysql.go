package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dbsmedya/entityplan/internal/lock"
	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
	"github.com/dbsmedya/entityplan/internal/sqlutil"
)

// Table base names; the configured prefix is prepended.
const (
	metaTable   = "plan_meta"
	recordTable = "plan_record"
	slotTable   = "plan_slot"
)

// MySQLOptions configures a MySQLStore.
type MySQLOptions struct {
	// Name identifies the store in its advisory lock name.
	Name               string
	TablePrefix        string
	LockTimeoutSeconds int
}

// MySQLStore keeps one row per planned record in plan_record and one row per
// relationship slot in plan_slot. A commit applies only the changeset, in
// one transaction, on a connection holding the store's advisory lock.
type MySQLStore struct {
	db          *sql.DB
	name        string
	lockTimeout int
	log         *logger.Logger
	closer      interface{ Close() error }

	meta, records, slots string // quoted table names
}

// NewMySQLStore creates a store over an open pool.
func NewMySQLStore(db *sql.DB, opts MySQLOptions, log *logger.Logger) (*MySQLStore, error) {
	if db == nil {
		return nil, errors.New("mysql store: database handle is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &MySQLStore{
		db:          db,
		name:        opts.Name,
		lockTimeout: opts.LockTimeoutSeconds,
		log:         log,
		closer:      db,
	}
	var err error
	if s.meta, err = sqlutil.TableName(opts.TablePrefix, metaTable); err != nil {
		return nil, fmt.Errorf("mysql store: %w", err)
	}
	if s.records, err = sqlutil.TableName(opts.TablePrefix, recordTable); err != nil {
		return nil, fmt.Errorf("mysql store: %w", err)
	}
	if s.slots, err = sqlutil.TableName(opts.TablePrefix, slotTable); err != nil {
		return nil, fmt.Errorf("mysql store: %w", err)
	}
	return s, nil
}

// EnsureSchema creates the store tables when missing.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TINYINT UNSIGNED NOT NULL PRIMARY KEY,
  version BIGINT NOT NULL,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, s.meta),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  record_key VARCHAR(512) NOT NULL PRIMARY KEY,
  kind VARCHAR(255) NOT NULL,
  fingerprint CHAR(64) NOT NULL,
  slots MEDIUMTEXT NOT NULL,
  KEY idx_kind (kind)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, s.records),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  relationship_key VARCHAR(400) NOT NULL PRIMARY KEY,
  slot_id VARCHAR(255) NOT NULL,
  kind VARCHAR(255) NOT NULL,
  type VARCHAR(255) NOT NULL,
  source_fp CHAR(64) NOT NULL,
  target_fp CHAR(64) NOT NULL,
  UNIQUE KEY uk_slot_id (slot_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, s.slots),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create plan store tables: %w", err)
		}
	}
	return nil
}

// Load reads the snapshot inside a read-only transaction.
func (s *MySQLStore) Load(ctx context.Context) (snap *plan.Snapshot, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	snap = plan.NewSnapshot()
	if snap.Version, err = s.version(ctx, tx, false); err != nil {
		return nil, err
	}
	if err = s.loadRecords(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err = s.loadRelationships(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit load transaction: %w", err)
	}
	return snap, nil
}

func (s *MySQLStore) version(ctx context.Context, tx *sql.Tx, forUpdate bool) (int64, error) {
	query := fmt.Sprintf("SELECT version FROM %s WHERE id = 1", s.meta)
	if forUpdate {
		query += " FOR UPDATE"
	}
	var v int64
	err := tx.QueryRowContext(ctx, query).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read plan version: %w", err)
	}
	return v, nil
}

func (s *MySQLStore) loadRecords(ctx context.Context, tx *sql.Tx, snap *plan.Snapshot) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT record_key, kind, fingerprint, slots FROM %s", s.records))
	if err != nil {
		return fmt.Errorf("query plan records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, kind, fp, slots string
		if err := rows.Scan(&key, &kind, &fp, &slots); err != nil {
			return fmt.Errorf("scan plan record: %w", err)
		}
		row := &plan.Row{Key: key, Kind: kind}
		if row.Fingerprint, err = record.ParseFingerprint(fp); err != nil {
			return fmt.Errorf("plan record %q: %w", key, err)
		}
		if err := json.Unmarshal([]byte(slots), &row.Slots); err != nil {
			return fmt.Errorf("plan record %q: decode slots: %w", key, err)
		}
		snap.Records[key] = row
	}
	return rows.Err()
}

func (s *MySQLStore) loadRelationships(ctx context.Context, tx *sql.Tx, snap *plan.Snapshot) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT relationship_key, slot_id, kind, type, source_fp, target_fp FROM %s", s.slots))
	if err != nil {
		return fmt.Errorf("query plan relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, id, kind, typ, src, tgt string
		if err := rows.Scan(&key, &id, &kind, &typ, &src, &tgt); err != nil {
			return fmt.Errorf("scan plan relationship: %w", err)
		}
		srcFP, err := record.ParseFingerprint(src)
		if err != nil {
			return fmt.Errorf("plan relationship %q: %w", key, err)
		}
		tgtFP, err := record.ParseFingerprint(tgt)
		if err != nil {
			return fmt.Errorf("plan relationship %q: %w", key, err)
		}
		snap.Relationships[key] = &plan.Slot{
			ID:           id,
			Role:         schema.RoleRelationship,
			Kind:         kind,
			Type:         typ,
			Fingerprints: []record.Fingerprint{srcFP, tgtFP},
		}
	}
	return rows.Err()
}

// Commit applies changes under the store's advisory lock.
func (s *MySQLStore) Commit(ctx context.Context, next *plan.Snapshot, changes plan.Changeset) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	l := lock.NewStoreLock(conn, s.name)
	return l.WithLock(ctx, s.lockTimeout, func() error {
		return s.apply(ctx, conn, next, changes)
	}, func(err error) {
		s.log.Warnw("Failed to release plan store lock", "lock", l.LockName(), "error", err)
	})
}

func (s *MySQLStore) apply(ctx context.Context, conn *sql.Conn, next *plan.Snapshot, changes plan.Changeset) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stored, err := s.version(ctx, tx, true)
	if err != nil {
		return err
	}
	if err = checkVersion(stored, next); err != nil {
		return err
	}

	for _, key := range changes.DeletedRecords {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE record_key = ?", s.records), key); err != nil {
			return fmt.Errorf("delete plan record %q: %w", key, err)
		}
	}
	for _, key := range changes.DeletedRelationships {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE relationship_key = ?", s.slots), key); err != nil {
			return fmt.Errorf("delete plan relationship %q: %w", key, err)
		}
	}

	upsertRecord := fmt.Sprintf(`INSERT INTO %s (record_key, kind, fingerprint, slots) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE kind = VALUES(kind), fingerprint = VALUES(fingerprint), slots = VALUES(slots)`, s.records)
	for _, key := range changes.UpsertedRecords() {
		row, ok := next.Records[key]
		if !ok {
			return fmt.Errorf("changeset names record %q missing from snapshot", key)
		}
		slots, mErr := json.Marshal(row.Slots)
		if mErr != nil {
			return fmt.Errorf("encode slots of %q: %w", key, mErr)
		}
		if _, err = tx.ExecContext(ctx, upsertRecord, key, row.Kind, row.Fingerprint.String(), string(slots)); err != nil {
			return fmt.Errorf("upsert plan record %q: %w", key, err)
		}
	}

	upsertSlot := fmt.Sprintf(`INSERT INTO %s (relationship_key, slot_id, kind, type, source_fp, target_fp) VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE slot_id = VALUES(slot_id), kind = VALUES(kind), type = VALUES(type), source_fp = VALUES(source_fp), target_fp = VALUES(target_fp)`, s.slots)
	for _, key := range changes.UpsertedRelationships() {
		slot, ok := next.Relationships[key]
		if !ok || len(slot.Fingerprints) != 2 {
			return fmt.Errorf("changeset names relationship %q missing from snapshot", key)
		}
		if _, err = tx.ExecContext(ctx, upsertSlot, key, slot.ID, slot.Kind, slot.Type,
			slot.Fingerprints[0].String(), slot.Fingerprints[1].String()); err != nil {
			return fmt.Errorf("upsert plan relationship %q: %w", key, err)
		}
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, version) VALUES (1, ?)
ON DUPLICATE KEY UPDATE version = VALUES(version)`, s.meta), next.Version); err != nil {
		return fmt.Errorf("update plan version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit plan transaction: %w", err)
	}

	s.log.Debugw("Plan committed",
		"version", next.Version,
		"changes", changes.Summary())
	return nil
}

// Locked reports whether another session currently holds the store's
// commit lock.
func (s *MySQLStore) Locked(ctx context.Context) (bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	return lock.IsLocked(ctx, conn, s.name)
}

// Close closes the underlying pool.
func (s *MySQLStore) Close() error {
	return s.closer.Close()
}
