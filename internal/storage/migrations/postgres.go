package migrations

import (
	"context"
	"fmt"

	"etoken-wallet/internal/storage/postgres"
)

const createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgresMigrations applies every embedded postgres file not yet recorded in
// schema_migrations. Each file runs in its own transaction with its ledger row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load("postgres")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createLedger); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	for _, m := range files {
		if err := applyPostgres(ctx, pool, m); err != nil {
			return err
		}
	}
	return nil
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var applied bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, m.name).Scan(&applied)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", m.name, err)
	}
	if applied {
		return nil
	}

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.name); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.name, err)
	}
	return nil
}
