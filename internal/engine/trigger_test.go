package engine

import (
	"testing"
	"time"

	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocatedRecord(id string, method model.AllocationMethod, targets ...string) model.OperationalRecord {
	return model.OperationalRecord{
		ID:          id,
		Amount:      10,
		IsAllocated: true,
		Rule:        &model.AllocationRule{Method: method, TargetProjects: targets},
	}
}

func recordIDs(records []model.OperationalRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func TestRecordsForProjectAdded(t *testing.T) {
	records := []model.OperationalRecord{
		allocatedRecord("r3", model.MethodEqual, "a"),
		allocatedRecord("r1", model.MethodBudget, "a"),
		allocatedRecord("r2", model.MethodCustom, "a"),
		{ID: "r4", Amount: 5}, // unallocated
	}

	t.Run("active project triggers spanning methods", func(t *testing.T) {
		project := &model.Project{ID: "new", Status: model.StatusActive}
		affected := RecordsForProjectAdded(project, records)
		assert.Equal(t, []string{"r1", "r3"}, recordIDs(affected))
	})

	t.Run("custom rules keep their frozen set", func(t *testing.T) {
		project := &model.Project{ID: "new", Status: model.StatusActive}
		for _, r := range RecordsForProjectAdded(project, records) {
			assert.NotEqual(t, model.MethodCustom, r.Rule.Method)
		}
	})

	t.Run("planning project triggers nothing", func(t *testing.T) {
		project := &model.Project{ID: "new", Status: model.StatusPlanning}
		assert.Empty(t, RecordsForProjectAdded(project, records))
	})
}

func TestRecordsForProjectUpdated(t *testing.T) {
	records := []model.OperationalRecord{
		allocatedRecord("equal", model.MethodEqual, "p"),
		allocatedRecord("budget", model.MethodBudget, "p"),
		allocatedRecord("duration", model.MethodDuration, "p"),
		allocatedRecord("custom", model.MethodCustom, "p"),
		allocatedRecord("other", model.MethodBudget, "q"),
	}

	base := model.Project{ID: "p", Name: "P", Status: model.StatusActive}

	tests := []struct {
		mutate func(*model.Project)
		name   string
		want   []string
	}{
		{
			name:   "no relevant change",
			mutate: func(p *model.Project) { p.Name = "renamed" },
			want:   nil,
		},
		{
			name:   "budget change hits budget rules",
			mutate: func(p *model.Project) { p.Budget = floatPtr(500) },
			want:   []string{"budget"},
		},
		{
			name: "date change hits duration rules",
			mutate: func(p *model.Project) {
				p.StartDate = datePtr(2026, time.April, 1)
			},
			want: []string{"duration"},
		},
		{
			name:   "status change hits every spanning rule",
			mutate: func(p *model.Project) { p.Status = model.StatusOnHold },
			want:   []string{"budget", "duration", "equal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := base
			tt.mutate(&updated)
			affected := RecordsForProjectUpdated(&base, &updated, records)
			assert.Equal(t, tt.want, recordIDs(affected))
		})
	}
}

func TestRecordsForProjectDeleted(t *testing.T) {
	records := []model.OperationalRecord{
		allocatedRecord("r1", model.MethodEqual, "p", "q"),
		allocatedRecord("r2", model.MethodEqual, "q"),
	}
	items := []model.AllocationLineItem{
		{ID: "li1", OperationalRecordID: "r1", ProjectID: "p", AllocatedAmount: 5},
	}

	affected := RecordsForProjectDeleted("p", records, items)
	require.Len(t, affected, 1)
	assert.Equal(t, "r1", affected[0].ID)

	// Records without a line item on the deleted project are untouched.
	assert.Empty(t, RecordsForProjectDeleted("p", records, nil))
}

func TestRecordsForRecompute(t *testing.T) {
	records := []model.OperationalRecord{
		allocatedRecord("r2", model.MethodCustom, "p"),
		allocatedRecord("r1", model.MethodEqual, "p"),
		{ID: "r0", Amount: 5},
	}

	affected := RecordsForRecompute(records)
	assert.Equal(t, []string{"r1", "r2"}, recordIDs(affected))
}
