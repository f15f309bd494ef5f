// Package storage provides the data persistence layer for the carbonclap application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carbonclap/carbonclap/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidProject  = errors.New("invalid project")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrInvalidLineItem = errors.New("invalid line item")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateProject validates a project before persistence.
func validateProject(project *model.Project) error {
	if project == nil {
		return fmt.Errorf("%w: project", ErrNilParameter)
	}
	if project.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidProject)
	}
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProject)
	}
	if !model.ValidStatus(project.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProject, project.Status)
	}
	if project.Budget != nil && *project.Budget < 0 {
		return fmt.Errorf("%w: negative budget", ErrInvalidProject)
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidProject)
	}
	return nil
}

// validateDirectRecord validates a direct emission record.
func validateDirectRecord(record *model.DirectRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if record.ProjectID == "" {
		return fmt.Errorf("%w: missing project ID", ErrInvalidRecord)
	}
	if record.Amount <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidRecord)
	}
	if record.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	return nil
}

// validateOperationalRecord validates an operational emission record.
// The rule must be present exactly when the record is marked allocated.
func validateOperationalRecord(record *model.OperationalRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if record.Amount <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidRecord)
	}
	if record.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	if record.IsAllocated && record.Rule == nil {
		return fmt.Errorf("%w: allocated record without rule", ErrInvalidRecord)
	}
	if !record.IsAllocated && record.Rule != nil {
		return fmt.Errorf("%w: rule on unallocated record", ErrInvalidRecord)
	}
	if record.Rule != nil && !model.ValidMethod(record.Rule.Method) {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidRecord, record.Rule.Method)
	}
	return nil
}

// validateLineItems validates a replacement set of line items for a record.
func validateLineItems(recordID string, items []model.AllocationLineItem) error {
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("%w: missing ID at index %d", ErrInvalidLineItem, i)
		}
		if item.OperationalRecordID != recordID {
			return fmt.Errorf("%w: item %s belongs to record %s, not %s",
				ErrInvalidLineItem, item.ID, item.OperationalRecordID, recordID)
		}
		if item.ProjectID == "" {
			return fmt.Errorf("%w: missing project ID at index %d", ErrInvalidLineItem, i)
		}
		if item.AllocatedAmount < 0 {
			return fmt.Errorf("%w: negative amount at index %d", ErrInvalidLineItem, i)
		}
		if item.Percentage < 0 || item.Percentage > 100 {
			return fmt.Errorf("%w: percentage out of range at index %d", ErrInvalidLineItem, i)
		}
	}
	return nil
}
