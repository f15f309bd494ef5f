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

// SaveProject inserts or updates a project, including its cached summary.
func (s *SQLiteStorage) SaveProject(ctx context.Context, project *model.Project) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProject(project); err != nil {
		return err
	}
	return s.saveProjectTx(ctx, s.db, project)
}

func (s *SQLiteStorage) saveProjectTx(ctx context.Context, q queryable, project *model.Project) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	project.UpdatedAt = time.Now().UTC()

	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (
			id, name, status, budget, start_date, end_date,
			direct_emissions, allocated_emissions, total_emissions,
			direct_record_count, allocated_record_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			budget = excluded.budget,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			direct_emissions = excluded.direct_emissions,
			allocated_emissions = excluded.allocated_emissions,
			total_emissions = excluded.total_emissions,
			direct_record_count = excluded.direct_record_count,
			allocated_record_count = excluded.allocated_record_count,
			updated_at = excluded.updated_at`,
		project.ID,
		project.Name,
		string(project.Status),
		project.Budget,
		project.StartDate,
		project.EndDate,
		project.Summary.DirectEmissions,
		project.Summary.AllocatedEmissions,
		project.Summary.TotalEmissions,
		project.Summary.DirectRecordCount,
		project.Summary.AllocatedRecordCount,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", project.ID, err)
	}

	slog.Debug("saved project", "id", project.ID, "status", project.Status)
	return nil
}

// GetProject retrieves a project by id.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*model.Project, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getProjectTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getProjectTx(ctx context.Context, q queryable, id string) (*model.Project, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, status, budget, start_date, end_date,
			direct_emissions, allocated_emissions, total_emissions,
			direct_record_count, allocated_record_count,
			created_at, updated_at
		FROM projects
		WHERE id = ?`, id)

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project %s: %w", id, err)
	}
	return project, nil
}

// GetProjects retrieves all projects ordered by name.
func (s *SQLiteStorage) GetProjects(ctx context.Context) ([]model.Project, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getProjectsTx(ctx, s.db)
}

func (s *SQLiteStorage) getProjectsTx(ctx context.Context, q queryable) ([]model.Project, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, status, budget, start_date, end_date,
			direct_emissions, allocated_emissions, total_emissions,
			direct_record_count, allocated_record_count,
			created_at, updated_at
		FROM projects
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		project, scanErr := scanProject(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan project: %w", scanErr)
		}
		projects = append(projects, *project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project row. Dependent records and line items are
// the engine's responsibility; the store only enforces key existence.
func (s *SQLiteStorage) DeleteProject(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteProjectTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteProjectTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}

	slog.Debug("deleted project", "id", id)
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*model.Project, error) {
	var (
		project   model.Project
		status    string
		budget    sql.NullFloat64
		startDate sql.NullTime
		endDate   sql.NullTime
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&status,
		&budget,
		&startDate,
		&endDate,
		&project.Summary.DirectEmissions,
		&project.Summary.AllocatedEmissions,
		&project.Summary.TotalEmissions,
		&project.Summary.DirectRecordCount,
		&project.Summary.AllocatedRecordCount,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.Status = model.ProjectStatus(status)
	if budget.Valid {
		project.Budget = &budget.Float64
	}
	if startDate.Valid {
		t := startDate.Time
		project.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		project.EndDate = &t
	}
	return &project, nil
}
