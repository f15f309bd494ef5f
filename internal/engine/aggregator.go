package engine

import (
	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
)

// ApplyDelta updates cached project summaries for one record's
// reallocation: the old line items' contribution is removed and the new
// items' contribution added in a single step, so no intermediate state
// exists where a record's allocation is half applied. TotalEmissions is
// always re-derived from direct + allocated afterwards, never accumulated
// independently, which keeps floating-point drift from compounding.
//
// Projects touched by the delta are marked in touched so the facade knows
// which summaries to persist. A record count that would go negative is
// clamped to zero and reported as a consistency warning; that state can
// only arise from pre-existing corruption and must not abort the repair.
func ApplyDelta(projects map[string]*model.Project, oldItems, newItems []model.AllocationLineItem, touched map[string]bool) []common.ConsistencyWarning {
	var warnings []common.ConsistencyWarning

	for _, item := range oldItems {
		p, ok := projects[item.ProjectID]
		if !ok {
			// Line item for a project that no longer exists; nothing to
			// unwind beyond dropping the item itself.
			continue
		}
		p.Summary.AllocatedEmissions -= item.AllocatedAmount
		p.Summary.AllocatedRecordCount--
		if p.Summary.AllocatedRecordCount < 0 {
			warnings = append(warnings, common.ConsistencyWarning{
				RecordID:  item.OperationalRecordID,
				ProjectID: p.ID,
				Reason:    "allocated record count went negative, clamped to zero",
			})
			p.Summary.AllocatedRecordCount = 0
		}
		if nearlyEqual(p.Summary.AllocatedEmissions, 0) {
			p.Summary.AllocatedEmissions = 0
		}
		markTouched(touched, p.ID)
	}

	for _, item := range newItems {
		p, ok := projects[item.ProjectID]
		if !ok {
			continue
		}
		p.Summary.AllocatedEmissions += item.AllocatedAmount
		p.Summary.AllocatedRecordCount++
		markTouched(touched, p.ID)
	}

	for id := range touched {
		if p, ok := projects[id]; ok {
			p.Summary.Rederive()
		}
	}

	return warnings
}

// ApplyDirectDelta adjusts the direct side of a project's summary when a
// direct record is added, changed, or removed. amountDelta and countDelta
// may be negative.
func ApplyDirectDelta(project *model.Project, amountDelta float64, countDelta int) []common.ConsistencyWarning {
	var warnings []common.ConsistencyWarning

	project.Summary.DirectEmissions += amountDelta
	project.Summary.DirectRecordCount += countDelta
	if project.Summary.DirectRecordCount < 0 {
		warnings = append(warnings, common.ConsistencyWarning{
			ProjectID: project.ID,
			Reason:    "direct record count went negative, clamped to zero",
		})
		project.Summary.DirectRecordCount = 0
	}
	if nearlyEqual(project.Summary.DirectEmissions, 0) {
		project.Summary.DirectEmissions = 0
	}
	project.Summary.Rederive()

	return warnings
}

func markTouched(touched map[string]bool, id string) {
	if touched != nil {
		touched[id] = true
	}
}
