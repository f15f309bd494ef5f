package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS projects (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					status TEXT NOT NULL,
					budget REAL,
					start_date DATETIME,
					end_date DATETIME,
					direct_emissions REAL NOT NULL DEFAULT 0,
					allocated_emissions REAL NOT NULL DEFAULT 0,
					total_emissions REAL NOT NULL DEFAULT 0,
					direct_record_count INTEGER NOT NULL DEFAULT 0,
					allocated_record_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_projects_status ON projects(status)`,

				`CREATE TABLE IF NOT EXISTS operational_records (
					id TEXT PRIMARY KEY,
					category TEXT NOT NULL,
					amount REAL NOT NULL,
					date DATETIME NOT NULL,
					is_allocated INTEGER NOT NULL DEFAULT 0,
					rule_method TEXT,
					rule_targets TEXT,
					rule_percentages TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_operational_records_date ON operational_records(date)`,
				`CREATE INDEX idx_operational_records_allocated ON operational_records(is_allocated)`,

				`CREATE TABLE IF NOT EXISTS allocation_line_items (
					id TEXT PRIMARY KEY,
					operational_record_id TEXT NOT NULL,
					project_id TEXT NOT NULL,
					allocated_amount REAL NOT NULL,
					percentage REAL NOT NULL,
					method TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (operational_record_id) REFERENCES operational_records(id)
				)`,
				`CREATE INDEX idx_line_items_record ON allocation_line_items(operational_record_id)`,
				`CREATE INDEX idx_line_items_project ON allocation_line_items(project_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add direct emission records",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS direct_records (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL,
					category TEXT NOT NULL,
					amount REAL NOT NULL,
					date DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (project_id) REFERENCES projects(id)
				)`,
				`CREATE INDEX idx_direct_records_project ON direct_records(project_id)`,
				`CREATE INDEX idx_direct_records_date ON direct_records(date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add free-form notes to records",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE direct_records ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE operational_records ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= ExpectedSchemaVersion {
		slog.Debug("database schema up to date", "version", currentVersion)
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		// PRAGMA doesn't accept placeholders
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	slog.Info("database migrated", "version", ExpectedSchemaVersion)
	return nil
}
