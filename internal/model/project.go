package model

import "time"

// ProjectStatus indicates where a production currently is in its lifecycle.
type ProjectStatus string

const (
	// StatusPlanning represents productions in pre-production.
	StatusPlanning ProjectStatus = "planning"
	// StatusActive represents productions currently shooting or in post.
	StatusActive ProjectStatus = "active"
	// StatusCompleted represents wrapped productions.
	StatusCompleted ProjectStatus = "completed"
	// StatusOnHold represents paused productions.
	StatusOnHold ProjectStatus = "on-hold"
)

// ValidStatus reports whether s is one of the known project statuses.
func ValidStatus(s ProjectStatus) bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted, StatusOnHold:
		return true
	default:
		return false
	}
}

// Project represents a single production tracked for emissions.
type Project struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	StartDate *time.Time
	EndDate   *time.Time
	Budget    *float64
	ID        string
	Name      string
	Status    ProjectStatus
	Summary   EmissionSummary
}

// IsActive reports whether the project is eligible for allocations.
func (p *Project) IsActive() bool {
	return p.Status == StatusActive
}

// DurationDays returns the project length in whole days, used as the
// weighting factor for duration-based allocation. Projects without both
// dates count as a single day so they still receive a share.
func (p *Project) DurationDays() int {
	if p.StartDate == nil || p.EndDate == nil {
		return 1
	}
	hours := p.EndDate.Sub(*p.StartDate).Hours()
	days := int(hours / 24)
	if hours > float64(days)*24 {
		days++
	}
	if days < 1 {
		return 1
	}
	return days
}

// EmissionSummary is the cached per-project emission rollup. It is derived
// state: AllocatedEmissions must always equal the sum of the project's
// current allocation line items, and TotalEmissions is re-derived from the
// direct and allocated components rather than accumulated.
type EmissionSummary struct {
	DirectEmissions      float64
	AllocatedEmissions   float64
	TotalEmissions       float64
	DirectRecordCount    int
	AllocatedRecordCount int
}

// Rederive recomputes TotalEmissions from its components.
func (s *EmissionSummary) Rederive() {
	s.TotalEmissions = s.DirectEmissions + s.AllocatedEmissions
}
