package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/carbonclap/carbonclap/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable abstracts *sql.DB and *sql.Tx so query helpers work in and out
// of transactions.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists for file-backed databases
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single
	// connection gives the facade its single-writer guarantee.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveProject(ctx context.Context, project *model.Project) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProject(project); err != nil {
		return err
	}
	return t.storage.saveProjectTx(ctx, t.tx, project)
}

func (t *sqliteTransaction) GetProject(ctx context.Context, id string) (*model.Project, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getProjectTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetProjects(ctx context.Context) ([]model.Project, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getProjectsTx(ctx, t.tx)
}

func (t *sqliteTransaction) DeleteProject(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteProjectTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveDirectRecord(ctx context.Context, record *model.DirectRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDirectRecord(record); err != nil {
		return err
	}
	return t.storage.saveDirectRecordTx(ctx, t.tx, record)
}

func (t *sqliteTransaction) GetDirectRecord(ctx context.Context, id string) (*model.DirectRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getDirectRecordTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetDirectRecordsByProject(ctx context.Context, projectID string) ([]model.DirectRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return nil, err
	}
	return t.storage.getDirectRecordsByProjectTx(ctx, t.tx, projectID)
}

func (t *sqliteTransaction) DeleteDirectRecord(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteDirectRecordTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) DeleteDirectRecordsByProject(ctx context.Context, projectID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return err
	}
	return t.storage.deleteDirectRecordsByProjectTx(ctx, t.tx, projectID)
}

func (t *sqliteTransaction) SaveOperationalRecord(ctx context.Context, record *model.OperationalRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOperationalRecord(record); err != nil {
		return err
	}
	return t.storage.saveOperationalRecordTx(ctx, t.tx, record)
}

func (t *sqliteTransaction) GetOperationalRecord(ctx context.Context, id string) (*model.OperationalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getOperationalRecordTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetOperationalRecords(ctx context.Context) ([]model.OperationalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getOperationalRecordsTx(ctx, t.tx, false)
}

func (t *sqliteTransaction) GetAllocatedRecords(ctx context.Context) ([]model.OperationalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getOperationalRecordsTx(ctx, t.tx, true)
}

func (t *sqliteTransaction) DeleteOperationalRecord(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteOperationalRecordTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetLineItems(ctx context.Context, recordID string) ([]model.AllocationLineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return nil, err
	}
	return t.storage.getLineItemsTx(ctx, t.tx, recordID)
}

func (t *sqliteTransaction) GetLineItemsByProject(ctx context.Context, projectID string) ([]model.AllocationLineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return nil, err
	}
	return t.storage.getLineItemsByProjectTx(ctx, t.tx, projectID)
}

func (t *sqliteTransaction) ReplaceLineItems(ctx context.Context, recordID string, items []model.AllocationLineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return err
	}
	if err := validateLineItems(recordID, items); err != nil {
		return err
	}
	return t.storage.replaceLineItemsTx(ctx, t.tx, recordID, items)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
