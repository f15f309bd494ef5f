// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/carbonclap/carbonclap/internal/model"
)

// RecordFilter defines filtering options for record listings.
type RecordFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Category  string
}

// Matches reports whether an operational record passes the filter. Zero
// fields match everything.
func (f RecordFilter) Matches(record *model.OperationalRecord) bool {
	if f.Category != "" && record.Category != f.Category {
		return false
	}
	if f.StartDate != nil && record.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && record.Date.After(*f.EndDate) {
		return false
	}
	return true
}

// Storage defines the contract for the emission ledger persistence layer.
// All reads return committed state only; the engine facade performs every
// mutation inside a single transaction so readers never observe a
// partially-applied allocation delta.
type Storage interface {
	// Project operations
	SaveProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjects(ctx context.Context) ([]model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Direct record operations
	SaveDirectRecord(ctx context.Context, record *model.DirectRecord) error
	GetDirectRecord(ctx context.Context, id string) (*model.DirectRecord, error)
	GetDirectRecordsByProject(ctx context.Context, projectID string) ([]model.DirectRecord, error)
	DeleteDirectRecord(ctx context.Context, id string) error
	DeleteDirectRecordsByProject(ctx context.Context, projectID string) error

	// Operational record operations
	SaveOperationalRecord(ctx context.Context, record *model.OperationalRecord) error
	GetOperationalRecord(ctx context.Context, id string) (*model.OperationalRecord, error)
	GetOperationalRecords(ctx context.Context) ([]model.OperationalRecord, error)
	GetAllocatedRecords(ctx context.Context) ([]model.OperationalRecord, error)
	DeleteOperationalRecord(ctx context.Context, id string) error

	// Allocation line item operations
	GetLineItems(ctx context.Context, recordID string) ([]model.AllocationLineItem, error)
	GetLineItemsByProject(ctx context.Context, projectID string) ([]model.AllocationLineItem, error)
	ReplaceLineItems(ctx context.Context, recordID string, items []model.AllocationLineItem) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a storage transaction. All Storage methods invoked
// on a Transaction take effect atomically on Commit.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// SummaryReport aggregates emission totals across all projects for display.
type SummaryReport struct {
	Projects         []model.Project
	TotalDirect      float64
	TotalAllocated   float64
	TotalEmissions   float64
	UnallocatedTotal float64
}
