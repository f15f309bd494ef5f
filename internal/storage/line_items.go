package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbonclap/carbonclap/internal/model"
)

// GetLineItems retrieves all allocation line items owned by one operational
// record, ordered by project id for deterministic traversal.
func (s *SQLiteStorage) GetLineItems(ctx context.Context, recordID string) ([]model.AllocationLineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return nil, err
	}
	return s.getLineItemsTx(ctx, s.db, recordID)
}

func (s *SQLiteStorage) getLineItemsTx(ctx context.Context, q queryable, recordID string) ([]model.AllocationLineItem, error) {
	return s.queryLineItems(ctx, q, `
		SELECT id, operational_record_id, project_id, allocated_amount, percentage, method, created_at
		FROM allocation_line_items
		WHERE operational_record_id = ?
		ORDER BY project_id`, recordID)
}

// GetLineItemsByProject retrieves all line items pointing at one project,
// across every operational record.
func (s *SQLiteStorage) GetLineItemsByProject(ctx context.Context, projectID string) ([]model.AllocationLineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return nil, err
	}
	return s.getLineItemsByProjectTx(ctx, s.db, projectID)
}

func (s *SQLiteStorage) getLineItemsByProjectTx(ctx context.Context, q queryable, projectID string) ([]model.AllocationLineItem, error) {
	return s.queryLineItems(ctx, q, `
		SELECT id, operational_record_id, project_id, allocated_amount, percentage, method, created_at
		FROM allocation_line_items
		WHERE project_id = ?
		ORDER BY operational_record_id`, projectID)
}

func (s *SQLiteStorage) queryLineItems(ctx context.Context, q queryable, query string, arg any) ([]model.AllocationLineItem, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.AllocationLineItem
	for rows.Next() {
		var (
			item   model.AllocationLineItem
			method string
		)
		if scanErr := rows.Scan(
			&item.ID,
			&item.OperationalRecordID,
			&item.ProjectID,
			&item.AllocatedAmount,
			&item.Percentage,
			&method,
			&item.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", scanErr)
		}
		item.Method = model.AllocationMethod(method)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line items: %w", err)
	}
	return items, nil
}

// ReplaceLineItems atomically swaps the full line item set for one record.
// Line items are always destroyed and regenerated as a whole; partial
// updates would let a reader observe a mixed allocation.
func (s *SQLiteStorage) ReplaceLineItems(ctx context.Context, recordID string, items []model.AllocationLineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return err
	}
	if err := validateLineItems(recordID, items); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.replaceLineItemsTx(ctx, tx, recordID, items); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) replaceLineItemsTx(ctx context.Context, tx *sql.Tx, recordID string, items []model.AllocationLineItem) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM allocation_line_items WHERE operational_record_id = ?`, recordID); err != nil {
		return fmt.Errorf("failed to clear line items for record %s: %w", recordID, err)
	}

	if len(items) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO allocation_line_items (
			id, operational_record_id, project_id, allocated_amount, percentage, method, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.OperationalRecordID,
			item.ProjectID,
			item.AllocatedAmount,
			item.Percentage,
			string(item.Method),
			createdAt,
		); err != nil {
			return fmt.Errorf("failed to insert line item %s: %w", item.ID, err)
		}
	}

	slog.Debug("replaced line items", "record_id", recordID, "count", len(items))
	return nil
}
