package migration

import (
	"context"

	"cmportal/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the reference mirror schema
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSnapshotsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create reference_snapshots table")
	}

	if err := r.createReferenceTablesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create reference_tables table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createSnapshotsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reference_snapshots (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			protocol_count INTEGER NOT NULL DEFAULT 0,
			feature_count INTEGER NOT NULL DEFAULT 0,
			topic_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// reference_tables holds every reference table as its header and rows so a
// load can rebuild it with the same parsers as the CSV files.
func (r *MigrationRunner) createReferenceTablesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reference_tables (
			name VARCHAR(64) PRIMARY KEY,
			snapshot_id UUID NOT NULL REFERENCES reference_snapshots(id) ON DELETE CASCADE,
			headers JSONB NOT NULL,
			rows JSONB NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_reference_tables_snapshot ON reference_tables(snapshot_id);
		CREATE INDEX IF NOT EXISTS idx_reference_snapshots_created ON reference_snapshots(created_at DESC);
	`)
	return err
}
