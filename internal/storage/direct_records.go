package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
)

// SaveDirectRecord inserts or updates a direct emission record.
func (s *SQLiteStorage) SaveDirectRecord(ctx context.Context, record *model.DirectRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDirectRecord(record); err != nil {
		return err
	}
	return s.saveDirectRecordTx(ctx, s.db, record)
}

func (s *SQLiteStorage) saveDirectRecordTx(ctx context.Context, q queryable, record *model.DirectRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO direct_records (id, project_id, category, amount, date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			category = excluded.category,
			amount = excluded.amount,
			date = excluded.date,
			notes = excluded.notes`,
		record.ID,
		record.ProjectID,
		record.Category,
		record.Amount,
		record.Date,
		record.Notes,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save direct record %s: %w", record.ID, err)
	}

	slog.Debug("saved direct record", "id", record.ID, "project_id", record.ProjectID)
	return nil
}

// GetDirectRecord retrieves a direct record by id.
func (s *SQLiteStorage) GetDirectRecord(ctx context.Context, id string) (*model.DirectRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getDirectRecordTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getDirectRecordTx(ctx context.Context, q queryable, id string) (*model.DirectRecord, error) {
	var record model.DirectRecord
	err := q.QueryRowContext(ctx, `
		SELECT id, project_id, category, amount, date, notes, created_at
		FROM direct_records
		WHERE id = ?`, id).Scan(
		&record.ID,
		&record.ProjectID,
		&record.Category,
		&record.Amount,
		&record.Date,
		&record.Notes,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("direct record %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query direct record %s: %w", id, err)
	}
	return &record, nil
}

// GetDirectRecordsByProject retrieves all direct records for one project.
func (s *SQLiteStorage) GetDirectRecordsByProject(ctx context.Context, projectID string) ([]model.DirectRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return nil, err
	}
	return s.getDirectRecordsByProjectTx(ctx, s.db, projectID)
}

func (s *SQLiteStorage) getDirectRecordsByProjectTx(ctx context.Context, q queryable, projectID string) ([]model.DirectRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, category, amount, date, notes, created_at
		FROM direct_records
		WHERE project_id = ?
		ORDER BY date, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query direct records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.DirectRecord
	for rows.Next() {
		var record model.DirectRecord
		if scanErr := rows.Scan(
			&record.ID,
			&record.ProjectID,
			&record.Category,
			&record.Amount,
			&record.Date,
			&record.Notes,
			&record.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan direct record: %w", scanErr)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating direct records: %w", err)
	}
	return records, nil
}

// DeleteDirectRecord removes a direct record by id.
func (s *SQLiteStorage) DeleteDirectRecord(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteDirectRecordTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteDirectRecordTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM direct_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete direct record %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("direct record %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteDirectRecordsByProject removes every direct record for a project,
// used when the project itself is deleted.
func (s *SQLiteStorage) DeleteDirectRecordsByProject(ctx context.Context, projectID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return err
	}
	return s.deleteDirectRecordsByProjectTx(ctx, s.db, projectID)
}

func (s *SQLiteStorage) deleteDirectRecordsByProjectTx(ctx context.Context, q queryable, projectID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM direct_records WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete direct records for project %s: %w", projectID, err)
	}
	return nil
}
