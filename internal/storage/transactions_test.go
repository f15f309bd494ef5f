package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
)

func TestSQLiteStorage_TransactionCommit(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	project := createTestProject("p1", "Committed", model.StatusActive)
	if err := tx.SaveProject(ctx, project); err != nil {
		t.Fatalf("Failed to save project in tx: %v", err)
	}
	if err := tx.SaveDirectRecord(ctx, &model.DirectRecord{
		ID: "d1", ProjectID: "p1", Category: "generator-fuel", Amount: 5, Date: time.Now(),
	}); err != nil {
		t.Fatalf("Failed to save direct record in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	if _, err := store.GetProject(ctx, "p1"); err != nil {
		t.Errorf("Project not visible after commit: %v", err)
	}
	records, err := store.GetDirectRecordsByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to get direct records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Got %d direct records after commit, want 1", len(records))
	}
}

func TestSQLiteStorage_TransactionRollback(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	if err := tx.SaveProject(ctx, createTestProject("p1", "Abandoned", model.StatusActive)); err != nil {
		t.Fatalf("Failed to save project in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}

	if _, err := store.GetProject(ctx, "p1"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetProject after rollback = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_TransactionReadsOwnWrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveProject(ctx, createTestProject("p1", "Mine", model.StatusActive)); err != nil {
		t.Fatalf("Failed to save project in tx: %v", err)
	}
	got, err := tx.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("Transaction cannot read its own write: %v", err)
	}
	if got.Name != "Mine" {
		t.Errorf("Name = %q, want %q", got.Name, "Mine")
	}
}

func TestSQLiteStorage_TransactionRestrictedOperations(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Migrate(ctx); err == nil {
		t.Error("Expected Migrate inside a transaction to fail")
	}
	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("Expected nested BeginTx to fail")
	}
	if err := tx.Close(); err == nil {
		t.Error("Expected Close on a transaction to fail")
	}
}
