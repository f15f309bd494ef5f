package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testBudget(f float64) *float64 { return &f }

func createTestProject(id, name string, status model.ProjectStatus) *model.Project {
	return &model.Project{
		ID:     id,
		Name:   name,
		Status: status,
	}
}

func TestSQLiteStorage_SaveProject(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	project := &model.Project{
		ID:        "p1",
		Name:      "Desert Feature",
		Status:    model.StatusActive,
		Budget:    testBudget(250000),
		StartDate: &start,
		EndDate:   &end,
		Summary: model.EmissionSummary{
			DirectEmissions:    12.5,
			AllocatedEmissions: 7.5,
			TotalEmissions:     20,
			DirectRecordCount:  2,
		},
	}

	if err := store.SaveProject(ctx, project); err != nil {
		t.Fatalf("Failed to save project: %v", err)
	}
	if project.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set on save")
	}

	got, err := store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to get project: %v", err)
	}
	if got.Name != project.Name {
		t.Errorf("Name = %q, want %q", got.Name, project.Name)
	}
	if got.Status != model.StatusActive {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusActive)
	}
	if got.Budget == nil || *got.Budget != 250000 {
		t.Errorf("Budget = %v, want 250000", got.Budget)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, start)
	}
	if got.Summary.TotalEmissions != 20 {
		t.Errorf("TotalEmissions = %v, want 20", got.Summary.TotalEmissions)
	}
	if got.Summary.DirectRecordCount != 2 {
		t.Errorf("DirectRecordCount = %d, want 2", got.Summary.DirectRecordCount)
	}

	// Upsert updates in place.
	project.Name = "Desert Feature (Reshoot)"
	project.Budget = nil
	if err := store.SaveProject(ctx, project); err != nil {
		t.Fatalf("Failed to update project: %v", err)
	}
	got, err = store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to get updated project: %v", err)
	}
	if got.Name != "Desert Feature (Reshoot)" {
		t.Errorf("Name = %q after update", got.Name)
	}
	if got.Budget != nil {
		t.Errorf("Budget = %v, want nil after clearing", got.Budget)
	}

	projects, err := store.GetProjects(ctx)
	if err != nil {
		t.Fatalf("Failed to list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("GetProjects returned %d projects, want 1", len(projects))
	}
}

func TestSQLiteStorage_SaveProjectValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		project *model.Project
		name    string
	}{
		{name: "nil project", project: nil},
		{name: "missing id", project: &model.Project{Name: "x", Status: model.StatusActive}},
		{name: "missing name", project: &model.Project{ID: "p1", Status: model.StatusActive}},
		{name: "unknown status", project: &model.Project{ID: "p1", Name: "x", Status: "bogus"}},
		{name: "negative budget", project: &model.Project{ID: "p1", Name: "x", Status: model.StatusActive, Budget: testBudget(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveProject(ctx, tt.project); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestSQLiteStorage_GetProjectNotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.GetProject(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetProject error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteProject(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("DeleteProject error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_DeleteProject(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	project := createTestProject("p1", "Doomed", model.StatusPlanning)
	if err := store.SaveProject(ctx, project); err != nil {
		t.Fatalf("Failed to save project: %v", err)
	}

	if err := store.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("Failed to delete project: %v", err)
	}
	if _, err := store.GetProject(ctx, "p1"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetProject after delete = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate in-memory storage: %v", err)
	}
	if err := store.SaveProject(ctx, createTestProject("p1", "Mem", model.StatusActive)); err != nil {
		t.Fatalf("Failed to save project: %v", err)
	}
}
