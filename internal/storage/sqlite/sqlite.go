// Package sqlite provides single-file local stores for the CLI.
// Writes are serialized across processes by an advisory file lock.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"etoken-wallet/internal/observability"
)

const lockTimeout = 5 * time.Second

// DB is an open wallet database.
type DB struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open opens or creates the database at path and applies the schema.
func Open(path, lockPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wallet db directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create wallet lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wallet sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS action_history (
			id TEXT PRIMARY KEY,
			owner_address TEXT NOT NULL,
			token_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			action_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			details TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_history_owner_created ON action_history(owner_address, created_at DESC);",
		`CREATE TABLE IF NOT EXISTS favorites (
			owner_address TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			added_at INTEGER NOT NULL,
			PRIMARY KEY (owner_address, entry_id)
		);`,
		`CREATE TABLE IF NOT EXISTS token_directory (
			id TEXT PRIMARY KEY,
			token_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			ticker TEXT NOT NULL,
			decimals INTEGER NOT NULL,
			image_url TEXT NOT NULL,
			region TEXT NOT NULL,
			verified INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init wallet schema: %w", err)
		}
	}
	return &DB{db: db, lock: flock.New(lockPath)}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// withLock runs fn while holding the cross-process write lock.
func (d *DB) withLock(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := d.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock wallet db: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock wallet db: timeout acquiring lock")
	}
	defer func() { _ = d.lock.Unlock() }()
	return fn()
}

func observe(operation string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	observability.RecordDBQuery("sqlite", operation, time.Since(start).Seconds(), e)
}
