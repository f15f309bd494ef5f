package model

import (
	"testing"
	"time"
)

func TestProject_DurationDays(t *testing.T) {
	day := func(d int) *time.Time {
		t := time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	noon := func(d int) *time.Time {
		t := time.Date(2026, time.March, d, 12, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		start *time.Time
		end   *time.Time
		name  string
		want  int
	}{
		{name: "no dates", want: 1},
		{name: "only start date", start: day(1), want: 1},
		{name: "ten whole days", start: day(1), end: day(11), want: 10},
		{name: "partial day rounds up", start: day(1), end: noon(11), want: 11},
		{name: "same day", start: day(5), end: day(5), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project{StartDate: tt.start, EndDate: tt.end}
			if got := p.DurationDays(); got != tt.want {
				t.Errorf("DurationDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEmissionSummary_Rederive(t *testing.T) {
	s := EmissionSummary{DirectEmissions: 12.5, AllocatedEmissions: 7.5, TotalEmissions: 999}
	s.Rederive()
	if s.TotalEmissions != 20 {
		t.Errorf("TotalEmissions = %v, want 20", s.TotalEmissions)
	}
}

func TestValidStatus(t *testing.T) {
	for _, status := range []ProjectStatus{StatusPlanning, StatusActive, StatusCompleted, StatusOnHold} {
		if !ValidStatus(status) {
			t.Errorf("ValidStatus(%q) = false", status)
		}
	}
	if ValidStatus("bogus") {
		t.Error(`ValidStatus("bogus") = true`)
	}
	if ValidStatus("") {
		t.Error(`ValidStatus("") = true`)
	}
}
