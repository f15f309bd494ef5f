package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
)

// SaveOperationalRecord inserts or updates an operational record, including
// its embedded allocation rule serialized to JSON columns.
func (s *SQLiteStorage) SaveOperationalRecord(ctx context.Context, record *model.OperationalRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOperationalRecord(record); err != nil {
		return err
	}
	return s.saveOperationalRecordTx(ctx, s.db, record)
}

func (s *SQLiteStorage) saveOperationalRecordTx(ctx context.Context, q queryable, record *model.OperationalRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var (
		ruleMethod      sql.NullString
		ruleTargets     sql.NullString
		rulePercentages sql.NullString
	)
	if record.Rule != nil {
		ruleMethod = sql.NullString{String: string(record.Rule.Method), Valid: true}

		targets, err := json.Marshal(record.Rule.TargetProjects)
		if err != nil {
			return fmt.Errorf("failed to marshal rule targets: %w", err)
		}
		ruleTargets = sql.NullString{String: string(targets), Valid: true}

		if record.Rule.CustomPercentages != nil {
			percentages, err := json.Marshal(record.Rule.CustomPercentages)
			if err != nil {
				return fmt.Errorf("failed to marshal rule percentages: %w", err)
			}
			rulePercentages = sql.NullString{String: string(percentages), Valid: true}
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO operational_records (
			id, category, amount, date, notes, is_allocated,
			rule_method, rule_targets, rule_percentages, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			amount = excluded.amount,
			date = excluded.date,
			notes = excluded.notes,
			is_allocated = excluded.is_allocated,
			rule_method = excluded.rule_method,
			rule_targets = excluded.rule_targets,
			rule_percentages = excluded.rule_percentages`,
		record.ID,
		record.Category,
		record.Amount,
		record.Date,
		record.Notes,
		record.IsAllocated,
		ruleMethod,
		ruleTargets,
		rulePercentages,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save operational record %s: %w", record.ID, err)
	}

	slog.Debug("saved operational record",
		"id", record.ID,
		"allocated", record.IsAllocated)
	return nil
}

// GetOperationalRecord retrieves an operational record by id.
func (s *SQLiteStorage) GetOperationalRecord(ctx context.Context, id string) (*model.OperationalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getOperationalRecordTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getOperationalRecordTx(ctx context.Context, q queryable, id string) (*model.OperationalRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, category, amount, date, notes, is_allocated,
			rule_method, rule_targets, rule_percentages, created_at
		FROM operational_records
		WHERE id = ?`, id)

	record, err := scanOperationalRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operational record %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query operational record %s: %w", id, err)
	}
	return record, nil
}

// GetOperationalRecords retrieves all operational records ordered by id for
// deterministic traversal.
func (s *SQLiteStorage) GetOperationalRecords(ctx context.Context) ([]model.OperationalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOperationalRecordsTx(ctx, s.db, false)
}

// GetAllocatedRecords retrieves only records with an active allocation rule.
func (s *SQLiteStorage) GetAllocatedRecords(ctx context.Context) ([]model.OperationalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOperationalRecordsTx(ctx, s.db, true)
}

func (s *SQLiteStorage) getOperationalRecordsTx(ctx context.Context, q queryable, allocatedOnly bool) ([]model.OperationalRecord, error) {
	query := `
		SELECT id, category, amount, date, notes, is_allocated,
			rule_method, rule_targets, rule_percentages, created_at
		FROM operational_records`
	if allocatedOnly {
		query += `
		WHERE is_allocated = 1`
	}
	query += `
		ORDER BY id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query operational records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.OperationalRecord
	for rows.Next() {
		record, scanErr := scanOperationalRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan operational record: %w", scanErr)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operational records: %w", err)
	}
	return records, nil
}

// DeleteOperationalRecord removes an operational record by id. Line items
// are removed separately by the engine so the summary delta is applied.
func (s *SQLiteStorage) DeleteOperationalRecord(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteOperationalRecordTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteOperationalRecordTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM operational_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operational record %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("operational record %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanOperationalRecord(row scanner) (*model.OperationalRecord, error) {
	var (
		record          model.OperationalRecord
		ruleMethod      sql.NullString
		ruleTargets     sql.NullString
		rulePercentages sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.Category,
		&record.Amount,
		&record.Date,
		&record.Notes,
		&record.IsAllocated,
		&ruleMethod,
		&ruleTargets,
		&rulePercentages,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ruleMethod.Valid {
		rule := &model.AllocationRule{
			Method: model.AllocationMethod(ruleMethod.String),
		}
		if ruleTargets.Valid && ruleTargets.String != "" {
			if err := json.Unmarshal([]byte(ruleTargets.String), &rule.TargetProjects); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rule targets: %w", err)
			}
		}
		if rulePercentages.Valid && rulePercentages.String != "" {
			if err := json.Unmarshal([]byte(rulePercentages.String), &rule.CustomPercentages); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rule percentages: %w", err)
			}
		}
		record.Rule = rule
	}
	return &record, nil
}
