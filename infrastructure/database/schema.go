package database

import (
	"context"
	"fmt"
)

// schemaMigrationsTable tracks applied schema versions
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    description TEXT
)`

type migration struct {
	version     int
	description string
	statements  []string
}

// migrations run in order; the SQL is shared by SQLite and PostgreSQL
var migrations = []migration{
	{
		version:     1,
		description: "Create tokens table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS tokens (
    token TEXT PRIMARY KEY,
    project_name TEXT NOT NULL,
    usage_count BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (usage_count >= 0)
)`,
			`CREATE INDEX IF NOT EXISTS idx_tokens_project_name ON tokens(project_name)`,
		},
	},
}

// migrate creates the schema if it doesn't exist
func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		if err := d.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}

	return nil
}

func (d *DB) runMigration(ctx context.Context, m migration) error {
	var applied int
	query := d.conn.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?")
	if err := d.conn.GetContext(ctx, &applied, query, m.version); err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if applied > 0 {
		return nil
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	insert := tx.Rebind("INSERT INTO schema_migrations (version, description) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, insert, m.version, m.description); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	d.logger.Info("Applied migration",
		"version", m.version,
		"description", m.description)
	return nil
}
