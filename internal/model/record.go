package model

import "time"

// DirectRecord represents an emission attributable to a single project,
// such as generator fuel for one shoot.
type DirectRecord struct {
	Date      time.Time
	CreatedAt time.Time
	ID        string
	ProjectID string
	Category  string
	Notes     string
	Amount    float64 // kg CO2e
}

// OperationalRecord represents an emission not attributable to one project,
// such as shared office electricity or warehouse heating. When IsAllocated
// is set, Rule describes how the amount is distributed across projects.
type OperationalRecord struct {
	Date        time.Time
	CreatedAt   time.Time
	Rule        *AllocationRule
	ID          string
	Category    string
	Notes       string
	Amount      float64 // kg CO2e
	IsAllocated bool
}
