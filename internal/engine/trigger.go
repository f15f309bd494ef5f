package engine

import (
	"sort"
	"time"

	"github.com/carbonclap/carbonclap/internal/model"
)

// The reallocation trigger decides, for a given mutation, the minimal set
// of allocated records whose line items are stale. Every function here is
// a pure predicate over the old/new project state and the record set;
// output order is stable (by record id) for deterministic traces.

// spansActiveProjects reports whether a method conceptually allocates over
// "all active projects", so that activating or deactivating any project
// changes its denominator. Only the custom method freezes an explicit set.
func spansActiveProjects(method model.AllocationMethod) bool {
	switch method {
	case model.MethodEqual, model.MethodBudget, model.MethodDuration:
		return true
	default:
		return false
	}
}

// RecordsForProjectAdded returns the records to recompute after a new
// active project appears. The caller is expected to have already added the
// project id to these rules' target sets.
func RecordsForProjectAdded(project *model.Project, records []model.OperationalRecord) []model.OperationalRecord {
	if project == nil || !project.IsActive() {
		return nil
	}
	var affected []model.OperationalRecord
	for _, r := range records {
		if r.IsAllocated && r.Rule != nil && spansActiveProjects(r.Rule.Method) {
			affected = append(affected, r)
		}
	}
	return sortByID(affected)
}

// RecordsForProjectUpdated compares the old and new project state and
// returns the records whose allocation depends on what changed:
// budget edits invalidate budget-method records, date edits invalidate
// duration-method records, and status changes invalidate every method
// whose eligible set just changed.
func RecordsForProjectUpdated(oldProject, newProject *model.Project, records []model.OperationalRecord) []model.OperationalRecord {
	if oldProject == nil || newProject == nil {
		return nil
	}

	budgetChanged := !floatPtrEqual(oldProject.Budget, newProject.Budget)
	datesChanged := !timePtrEqual(oldProject.StartDate, newProject.StartDate) ||
		!timePtrEqual(oldProject.EndDate, newProject.EndDate)
	statusChanged := oldProject.Status != newProject.Status

	if !budgetChanged && !datesChanged && !statusChanged {
		return nil
	}

	var affected []model.OperationalRecord
	for _, r := range records {
		if !r.IsAllocated || r.Rule == nil || !r.Rule.Targets(newProject.ID) {
			continue
		}
		switch {
		case statusChanged && spansActiveProjects(r.Rule.Method):
			affected = append(affected, r)
		case budgetChanged && r.Rule.Method == model.MethodBudget:
			affected = append(affected, r)
		case datesChanged && r.Rule.Method == model.MethodDuration:
			affected = append(affected, r)
		}
	}
	return sortByID(affected)
}

// RecordsForProjectDeleted returns every allocated record that had at least
// one line item pointing at the deleted project. Those records must be
// recomputed against the remaining projects only.
func RecordsForProjectDeleted(projectID string, records []model.OperationalRecord, projectItems []model.AllocationLineItem) []model.OperationalRecord {
	referencing := make(map[string]bool, len(projectItems))
	for _, item := range projectItems {
		if item.ProjectID == projectID {
			referencing[item.OperationalRecordID] = true
		}
	}

	var affected []model.OperationalRecord
	for _, r := range records {
		if r.IsAllocated && referencing[r.ID] {
			affected = append(affected, r)
		}
	}
	return sortByID(affected)
}

// RecordsForRecompute returns every allocated record unconditionally, for
// the manual drift-repair pass.
func RecordsForRecompute(records []model.OperationalRecord) []model.OperationalRecord {
	var affected []model.OperationalRecord
	for _, r := range records {
		if r.IsAllocated && r.Rule != nil {
			affected = append(affected, r)
		}
	}
	return sortByID(affected)
}

func sortByID(records []model.OperationalRecord) []model.OperationalRecord {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
