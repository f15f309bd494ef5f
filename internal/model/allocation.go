package model

import "time"

// AllocationMethod selects how an operational record's amount is split
// across its target projects.
type AllocationMethod string

const (
	// MethodEqual splits the amount evenly across eligible projects.
	MethodEqual AllocationMethod = "equal"
	// MethodBudget splits proportionally to project budgets.
	MethodBudget AllocationMethod = "budget"
	// MethodDuration splits proportionally to project durations in days.
	MethodDuration AllocationMethod = "duration"
	// MethodCustom uses explicit per-project percentages.
	MethodCustom AllocationMethod = "custom"
)

// ValidMethod reports whether m is one of the known allocation methods.
func ValidMethod(m AllocationMethod) bool {
	switch m {
	case MethodEqual, MethodBudget, MethodDuration, MethodCustom:
		return true
	default:
		return false
	}
}

// AllocationRule describes how one operational record is distributed.
//
// For equal, budget and duration the target set is advisory: it tracks the
// set of active projects and is maintained by the engine as projects come
// and go. Only the custom method carries a meaningful frozen target set,
// via its percentage map.
type AllocationRule struct {
	CustomPercentages map[string]float64
	Method            AllocationMethod
	TargetProjects    []string
}

// Targets reports whether the rule includes the given project id.
func (r *AllocationRule) Targets(projectID string) bool {
	for _, id := range r.TargetProjects {
		if id == projectID {
			return true
		}
	}
	return false
}

// AddTarget appends a project id to the target set if not already present.
func (r *AllocationRule) AddTarget(projectID string) {
	if !r.Targets(projectID) {
		r.TargetProjects = append(r.TargetProjects, projectID)
	}
}

// RemoveTarget drops a project id from the target set and its percentage map.
func (r *AllocationRule) RemoveTarget(projectID string) {
	out := r.TargetProjects[:0]
	for _, id := range r.TargetProjects {
		if id != projectID {
			out = append(out, id)
		}
	}
	r.TargetProjects = out
	delete(r.CustomPercentages, projectID)
}

// Clone returns a deep copy so callers can mutate rules without aliasing
// stored state.
func (r *AllocationRule) Clone() *AllocationRule {
	if r == nil {
		return nil
	}
	c := &AllocationRule{
		Method:         r.Method,
		TargetProjects: append([]string(nil), r.TargetProjects...),
	}
	if r.CustomPercentages != nil {
		c.CustomPercentages = make(map[string]float64, len(r.CustomPercentages))
		for k, v := range r.CustomPercentages {
			c.CustomPercentages[k] = v
		}
	}
	return c
}

// AllocationLineItem is one project's share of one operational record.
// Line items for a record are destroyed and regenerated as a whole
// whenever that record is reallocated.
type AllocationLineItem struct {
	CreatedAt           time.Time
	ID                  string
	OperationalRecordID string
	ProjectID           string
	Method              AllocationMethod
	AllocatedAmount     float64 // kg CO2e
	Percentage          float64 // 0-100
}
