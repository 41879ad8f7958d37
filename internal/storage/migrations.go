package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- One collection per indexed project
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    project_root TEXT NOT NULL,
    embedding_function TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    username TEXT,
    hostname TEXT,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Chunk records with their embeddings
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    path TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    document TEXT NOT NULL,
    file_hash BLOB NOT NULL,
    vector BLOB NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, id),
    FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(collection, path);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_documents_path;
DROP TABLE IF EXISTS documents;
DROP TABLE IF EXISTS collections;
DROP TABLE IF EXISTS schema_version;
`

// schemaVersion returns the newest applied migration, or 0.0.0 on a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'").Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return semver.MustParse("0.0.0"), nil
	}

	var raw string
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC, version DESC LIMIT 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && raw == "") {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
	}
	return v, nil
}

// ApplyMigrations brings the schema up to CurrentSchemaVersion.
// Each migration runs in its own transaction together with its version record.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}
		if err := runMigration(ctx, db, m, true); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

// RollbackMigration reverts the newest applied migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		m := AllMigrations[i]
		v, err := semver.NewVersion(m.Version)
		if err != nil || !v.Equal(current) {
			continue
		}
		if err := runMigration(ctx, db, m, false); err != nil {
			return fmt.Errorf("failed to roll back migration %s: %w", m.Version, err)
		}
		return nil
	}
	return fmt.Errorf("no applied migration matches schema version %s", current)
}

// runMigration applies or reverts m together with its version record in one transaction
func runMigration(ctx context.Context, db *sql.DB, m Migration, up bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if up {
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	} else {
		// The record goes first; the down script may drop schema_version itself
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", m.Version); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return err
		}
	}
	return tx.Commit()
}
