// Package engine implements the operational-emission allocation engine:
// a pure allocation calculator, a reallocation trigger, a summary
// aggregator, and the facade that composes them over the storage port.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/google/uuid"
)

// ComputeAllocations distributes an operational record's amount across
// eligible projects per its rule, returning one line item per receiving
// project. Pure: no I/O, deterministic for a given record and project
// snapshot except for freshly generated line item ids and timestamps.
//
// A project is eligible when its id is in the rule's target set and its
// status is active. Zero eligible projects is not an error; the record
// simply contributes nothing until a project becomes eligible.
func ComputeAllocations(record *model.OperationalRecord, projects []model.Project) ([]model.AllocationLineItem, []common.ConsistencyWarning) {
	if record == nil || !record.IsAllocated || record.Rule == nil {
		return nil, nil
	}

	eligible := eligibleProjects(record.Rule, projects)
	if len(eligible) == 0 {
		return nil, nil
	}

	percentages := make(map[string]float64, len(eligible))
	switch record.Rule.Method {
	case model.MethodEqual:
		share := 100.0 / float64(len(eligible))
		for _, p := range eligible {
			percentages[p.ID] = share
		}

	case model.MethodBudget:
		var total float64
		for _, p := range eligible {
			if p.Budget != nil {
				total += *p.Budget
			}
		}
		if total == 0 {
			// No allocation yet rather than a division error.
			return nil, []common.ConsistencyWarning{{
				RecordID: record.ID,
				Reason:   "budget allocation skipped: eligible project budgets sum to zero",
			}}
		}
		for _, p := range eligible {
			if p.Budget != nil {
				percentages[p.ID] = *p.Budget / total * 100
			}
		}

	case model.MethodDuration:
		var total float64
		durations := make(map[string]float64, len(eligible))
		for _, p := range eligible {
			d := float64(p.DurationDays())
			durations[p.ID] = d
			total += d
		}
		for _, p := range eligible {
			percentages[p.ID] = durations[p.ID] / total * 100
		}

	case model.MethodCustom:
		for _, p := range eligible {
			if pct, ok := record.Rule.CustomPercentages[p.ID]; ok && pct > 0 {
				percentages[p.ID] = pct
			}
		}

	default:
		return nil, []common.ConsistencyWarning{{
			RecordID: record.ID,
			Reason:   "unknown allocation method " + string(record.Rule.Method),
		}}
	}

	now := time.Now().UTC()
	items := make([]model.AllocationLineItem, 0, len(eligible))
	for _, p := range eligible {
		pct, ok := percentages[p.ID]
		if !ok || pct == 0 {
			// Zero-amount line items are never persisted.
			continue
		}
		items = append(items, model.AllocationLineItem{
			ID:                  uuid.New().String(),
			OperationalRecordID: record.ID,
			ProjectID:           p.ID,
			AllocatedAmount:     record.Amount * pct / 100,
			Percentage:          pct,
			Method:              record.Rule.Method,
			CreatedAt:           now,
		})
	}
	return items, nil
}

// eligibleProjects filters the snapshot to targeted active projects, sorted
// by id so output order is stable.
func eligibleProjects(rule *model.AllocationRule, projects []model.Project) []model.Project {
	var eligible []model.Project
	for _, p := range projects {
		if p.IsActive() && rule.Targets(p.ID) {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible
}

// SumAllocated returns the line items' total allocated amount.
func SumAllocated(items []model.AllocationLineItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.AllocatedAmount
	}
	return sum
}

// ValidateRule checks a rule against the current project set before any
// state is mutated. Unknown target ids, a custom method without
// percentages, out-of-range percentages, or a custom sum above 100 are
// all rejected as ErrInvalidRule.
func ValidateRule(rule *model.AllocationRule, projects map[string]*model.Project) error {
	if rule == nil {
		return common.ErrInvalidRule
	}
	if !model.ValidMethod(rule.Method) {
		return common.ErrInvalidMethod
	}

	for _, id := range rule.TargetProjects {
		if _, ok := projects[id]; !ok {
			return common.ErrInvalidRule
		}
	}

	if rule.Method == model.MethodCustom {
		if len(rule.CustomPercentages) == 0 {
			return common.ErrInvalidRule
		}
		var sum float64
		for id, pct := range rule.CustomPercentages {
			if _, ok := projects[id]; !ok {
				return common.ErrInvalidRule
			}
			if pct < 0 || pct > 100 {
				return common.ErrInvalidRule
			}
			sum += pct
		}
		// Sums below 100 leave a remainder unallocated, which is allowed;
		// sums above 100 would mint emissions out of thin air.
		if sum > 100+1e-9 {
			return common.ErrInvalidRule
		}
	}
	return nil
}

// nearlyEqual compares floats within the engine's tolerated drift.
func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
