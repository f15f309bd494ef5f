package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrations_VersionsAreSequential(t *testing.T) {
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration at index %d has version %d, want %d", i, m.Version, i+1)
		}
		if m.Description == "" {
			t.Errorf("migration %d has no description", m.Version)
		}
		if m.Up == nil {
			t.Errorf("migration %d has no Up function", m.Version)
		}
	}
	if latest := migrations[len(migrations)-1].Version; latest != ExpectedSchemaVersion {
		t.Errorf("latest migration version %d does not match ExpectedSchemaVersion %d",
			latest, ExpectedSchemaVersion)
	}
}

func TestMigrate_SetsSchemaVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("First migrate failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	// Reopening the same file must also be a no-op.
	store2, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer func() { _ = store2.Close() }()
	if err := store2.Migrate(ctx); err != nil {
		t.Fatalf("Migrate on reopened database failed: %v", err)
	}
}
