package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/carbonclap/carbonclap/internal/service"
	"github.com/google/uuid"
)

// Engine is the facade over the allocation subsystem. All mutating
// operations are serialized by a single writer lock and executed inside
// one storage transaction, so every affected project summary and line item
// reaches the new consistent state together or not at all. Validation
// failures are returned before any state is touched.
type Engine struct {
	storage  service.Storage
	mu       sync.Mutex
	warnings atomic.Int64
}

// New creates an allocation engine on top of the given storage.
func New(storage service.Storage) *Engine {
	return &Engine{storage: storage}
}

// WarningCount returns the number of consistency warnings recorded since
// the engine was created. Warnings never abort operations; the count is
// exposed for operational debugging.
func (e *Engine) WarningCount() int64 {
	return e.warnings.Load()
}

func (e *Engine) recordWarnings(warnings []common.ConsistencyWarning) {
	for _, w := range warnings {
		common.LogWarning(w)
	}
	e.warnings.Add(int64(len(warnings)))
}

// ProjectSpec describes a project to create.
type ProjectSpec struct {
	StartDate *time.Time
	EndDate   *time.Time
	Budget    *float64
	Name      string
	Status    model.ProjectStatus
}

// ProjectPatch describes a partial update to a project. Nil fields are
// left unchanged; the Clear flags reset the corresponding nullable fields.
type ProjectPatch struct {
	Name        *string
	Status      *model.ProjectStatus
	Budget      *float64
	StartDate   *time.Time
	EndDate     *time.Time
	ClearBudget bool
	ClearDates  bool
}

// DirectRecordSpec describes a direct emission record to create.
type DirectRecordSpec struct {
	Date      time.Time
	ProjectID string
	Category  string
	Notes     string
	Amount    float64
}

// OperationalRecordSpec describes an operational record to create. Rule
// may be nil, in which case the record starts unallocated.
type OperationalRecordSpec struct {
	Date     time.Time
	Rule     *model.AllocationRule
	Category string
	Notes    string
	Amount   float64
}

// RecordPatch describes a partial update to an operational record.
type RecordPatch struct {
	Category *string
	Notes    *string
	Amount   *float64
	Date     *time.Time
}

// AddProject creates a project with a zero summary and, if it is active,
// runs the project-added reallocation pass: equal, budget, and duration
// rules conceptually span all active projects, so the new project joins
// their target sets and every such record is recomputed.
func (e *Engine) AddProject(ctx context.Context, spec ProjectSpec) (*model.Project, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}
	if spec.Status == "" {
		spec.Status = model.StatusPlanning
	}
	if !model.ValidStatus(spec.Status) {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidStatus, spec.Status)
	}
	if spec.Budget != nil && *spec.Budget < 0 {
		return nil, fmt.Errorf("%w: budget cannot be negative", common.ErrInvalidAmount)
	}
	if spec.StartDate != nil && spec.EndDate != nil && spec.EndDate.Before(*spec.StartDate) {
		return nil, common.ErrInvalidRange
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	project := &model.Project{
		ID:        uuid.New().String(),
		Name:      spec.Name,
		Status:    spec.Status,
		Budget:    spec.Budget,
		StartDate: spec.StartDate,
		EndDate:   spec.EndDate,
	}
	if err := tx.SaveProject(ctx, project); err != nil {
		return nil, err
	}

	if project.IsActive() {
		records, err := tx.GetAllocatedRecords(ctx)
		if err != nil {
			return nil, err
		}

		affected := RecordsForProjectAdded(project, records)
		for i := range affected {
			affected[i].Rule.AddTarget(project.ID)
			if err := tx.SaveOperationalRecord(ctx, &affected[i]); err != nil {
				return nil, err
			}
		}

		if err := e.reallocate(ctx, tx, affected); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("added project", "id", project.ID, "name", project.Name, "status", project.Status)
	return e.storage.GetProject(ctx, project.ID)
}

// UpdateProject applies a partial update, then recomputes exactly the
// records the change invalidates.
func (e *Engine) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*model.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	project, err := tx.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *project

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("project name cannot be empty")
		}
		project.Name = *patch.Name
	}
	if patch.Status != nil {
		if !model.ValidStatus(*patch.Status) {
			return nil, fmt.Errorf("%w: %s", common.ErrInvalidStatus, *patch.Status)
		}
		project.Status = *patch.Status
	}
	if patch.ClearBudget {
		project.Budget = nil
	} else if patch.Budget != nil {
		if *patch.Budget < 0 {
			return nil, fmt.Errorf("%w: budget cannot be negative", common.ErrInvalidAmount)
		}
		project.Budget = patch.Budget
	}
	if patch.ClearDates {
		project.StartDate = nil
		project.EndDate = nil
	} else {
		if patch.StartDate != nil {
			project.StartDate = patch.StartDate
		}
		if patch.EndDate != nil {
			project.EndDate = patch.EndDate
		}
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		return nil, common.ErrInvalidRange
	}

	if err := tx.SaveProject(ctx, project); err != nil {
		return nil, err
	}

	records, err := tx.GetAllocatedRecords(ctx)
	if err != nil {
		return nil, err
	}

	// A project activated after creation joins the spanning rules the same
	// way a newly added active project does, so the status-change trigger
	// below finds it in their target sets.
	if !before.IsActive() && project.IsActive() {
		for i := range records {
			r := &records[i]
			if r.Rule != nil && spansActiveProjects(r.Rule.Method) {
				r.Rule.AddTarget(project.ID)
				if err := tx.SaveOperationalRecord(ctx, r); err != nil {
					return nil, err
				}
			}
		}
	}

	affected := RecordsForProjectUpdated(&before, project, records)
	if err := e.reallocate(ctx, tx, affected); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("updated project", "id", id, "reallocated_records", len(affected))
	return e.storage.GetProject(ctx, id)
}

// DeleteProject removes a project and its direct records, then recomputes
// every allocated record that referenced it against the remaining projects.
func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.GetProject(ctx, id); err != nil {
		return err
	}

	projectItems, err := tx.GetLineItemsByProject(ctx, id)
	if err != nil {
		return err
	}
	records, err := tx.GetAllocatedRecords(ctx)
	if err != nil {
		return err
	}
	affected := RecordsForProjectDeleted(id, records, projectItems)

	if err := tx.DeleteDirectRecordsByProject(ctx, id); err != nil {
		return err
	}
	if err := tx.DeleteProject(ctx, id); err != nil {
		return err
	}

	// Drop the deleted project from every rule that targets it, not just
	// the recomputed ones, so no target set keeps a dangling id. Affected
	// records share these rule pointers, so the recompute below sees the
	// narrowed targets.
	for i := range records {
		r := &records[i]
		if r.Rule != nil && r.Rule.Targets(id) {
			r.Rule.RemoveTarget(id)
			if err := tx.SaveOperationalRecord(ctx, r); err != nil {
				return err
			}
		}
	}
	if err := e.reallocate(ctx, tx, affected); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("deleted project", "id", id, "reallocated_records", len(affected))
	return nil
}

// AddDirectRecord creates a project-attributed emission record and updates
// the project's direct summary.
func (e *Engine) AddDirectRecord(ctx context.Context, spec DirectRecordSpec) (*model.DirectRecord, error) {
	if spec.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	project, err := tx.GetProject(ctx, spec.ProjectID)
	if err != nil {
		return nil, err
	}

	record := &model.DirectRecord{
		ID:        uuid.New().String(),
		ProjectID: spec.ProjectID,
		Category:  spec.Category,
		Amount:    spec.Amount,
		Date:      spec.Date,
		Notes:     spec.Notes,
	}
	if err := tx.SaveDirectRecord(ctx, record); err != nil {
		return nil, err
	}

	e.recordWarnings(ApplyDirectDelta(project, record.Amount, 1))
	if err := tx.SaveProject(ctx, project); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateDirectRecord applies a partial update to a direct record,
// adjusting the owning project's direct summary by the amount delta.
func (e *Engine) UpdateDirectRecord(ctx context.Context, id string, patch RecordPatch) (*model.DirectRecord, error) {
	if patch.Amount != nil && *patch.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetDirectRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	oldAmount := record.Amount

	if patch.Category != nil {
		record.Category = *patch.Category
	}
	if patch.Notes != nil {
		record.Notes = *patch.Notes
	}
	if patch.Amount != nil {
		record.Amount = *patch.Amount
	}
	if patch.Date != nil {
		record.Date = *patch.Date
	}
	if err := tx.SaveDirectRecord(ctx, record); err != nil {
		return nil, err
	}

	if record.Amount != oldAmount {
		project, err := tx.GetProject(ctx, record.ProjectID)
		if err != nil {
			return nil, err
		}
		e.recordWarnings(ApplyDirectDelta(project, record.Amount-oldAmount, 0))
		if err := tx.SaveProject(ctx, project); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteDirectRecord removes a direct record and reverses its contribution
// to the owning project's summary.
func (e *Engine) DeleteDirectRecord(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetDirectRecord(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.DeleteDirectRecord(ctx, id); err != nil {
		return err
	}

	project, err := tx.GetProject(ctx, record.ProjectID)
	if err == nil {
		e.recordWarnings(ApplyDirectDelta(project, -record.Amount, -1))
		if err := tx.SaveProject(ctx, project); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddOperationalRecord creates a shared emission record. When a rule is
// supplied the record's line items and the affected summaries are computed
// and persisted before the call returns.
func (e *Engine) AddOperationalRecord(ctx context.Context, spec OperationalRecordSpec) (*model.OperationalRecord, error) {
	if spec.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	record := &model.OperationalRecord{
		ID:       uuid.New().String(),
		Category: spec.Category,
		Amount:   spec.Amount,
		Date:     spec.Date,
		Notes:    spec.Notes,
	}

	if spec.Rule != nil {
		projects, err := loadProjectMap(ctx, tx)
		if err != nil {
			return nil, err
		}
		rule := spec.Rule.Clone()
		if err := e.prepareRule(rule, projects); err != nil {
			return nil, err
		}
		record.IsAllocated = true
		record.Rule = rule
	}

	if err := tx.SaveOperationalRecord(ctx, record); err != nil {
		return nil, err
	}

	if record.IsAllocated {
		if err := e.reallocate(ctx, tx, []model.OperationalRecord{*record}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("added operational record",
		"id", record.ID,
		"amount", record.Amount,
		"allocated", record.IsAllocated)
	return record, nil
}

// UpdateOperationalRecord applies a partial update. An amount change on an
// allocated record invalidates its line items, so it is reallocated.
func (e *Engine) UpdateOperationalRecord(ctx context.Context, id string, patch RecordPatch) (*model.OperationalRecord, error) {
	if patch.Amount != nil && *patch.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetOperationalRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	oldAmount := record.Amount

	if patch.Category != nil {
		record.Category = *patch.Category
	}
	if patch.Notes != nil {
		record.Notes = *patch.Notes
	}
	if patch.Amount != nil {
		record.Amount = *patch.Amount
	}
	if patch.Date != nil {
		record.Date = *patch.Date
	}
	if err := tx.SaveOperationalRecord(ctx, record); err != nil {
		return nil, err
	}

	if record.IsAllocated && record.Amount != oldAmount {
		if err := e.reallocate(ctx, tx, []model.OperationalRecord{*record}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// ApplyAllocation sets or replaces the allocation rule for a record.
// Idempotent: the existing line items are always fully removed before the
// new set is added, even when the rule is unchanged, so repeating the call
// yields the same end state.
func (e *Engine) ApplyAllocation(ctx context.Context, recordID string, rule *model.AllocationRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetOperationalRecord(ctx, recordID)
	if err != nil {
		return err
	}

	projects, err := loadProjectMap(ctx, tx)
	if err != nil {
		return err
	}

	next := rule.Clone()
	if err := e.prepareRule(next, projects); err != nil {
		return err
	}

	record.IsAllocated = true
	record.Rule = next
	if err := tx.SaveOperationalRecord(ctx, record); err != nil {
		return err
	}

	if err := e.reallocate(ctx, tx, []model.OperationalRecord{*record}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("applied allocation", "record_id", recordID, "method", next.Method)
	return nil
}

// RemoveAllocation clears a record's rule and removes all its line items,
// reversing their contribution to project summaries.
func (e *Engine) RemoveAllocation(ctx context.Context, recordID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetOperationalRecord(ctx, recordID)
	if err != nil {
		return err
	}

	if err := e.retireLineItems(ctx, tx, record.ID); err != nil {
		return err
	}

	record.IsAllocated = false
	record.Rule = nil
	if err := tx.SaveOperationalRecord(ctx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("removed allocation", "record_id", recordID)
	return nil
}

// DeleteOperationalRecord removes a record and, if allocated, all its line
// items with the corresponding summary delta.
func (e *Engine) DeleteOperationalRecord(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.GetOperationalRecord(ctx, id); err != nil {
		return err
	}
	if err := e.retireLineItems(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.DeleteOperationalRecord(ctx, id); err != nil {
		return err
	}

	return tx.Commit()
}

// RecomputeAll reruns allocation for every allocated record and rebuilds
// every cached summary from the underlying records, repairing any drift.
// Equal, budget, and duration rules have their target sets normalized to
// the full current active-project id set first. The writer lock is held
// for the whole pass so the project snapshot stays stable. onProgress,
// when non-nil, is invoked after each record.
func (e *Engine) RecomputeAll(ctx context.Context, onProgress func(done, total int)) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	projects, err := loadProjectMap(ctx, tx)
	if err != nil {
		return 0, err
	}
	activeIDs := activeProjectIDs(projects)

	// Rebuild summaries from zero rather than applying deltas on top of
	// state that may have drifted.
	touched := make(map[string]bool)
	for id, p := range projects {
		records, err := tx.GetDirectRecordsByProject(ctx, id)
		if err != nil {
			return 0, err
		}
		p.Summary = model.EmissionSummary{DirectRecordCount: len(records)}
		for _, r := range records {
			p.Summary.DirectEmissions += r.Amount
		}
		p.Summary.Rederive()
		touched[id] = true
	}

	records, err := tx.GetAllocatedRecords(ctx)
	if err != nil {
		return 0, err
	}
	affected := RecordsForRecompute(records)

	for i := range affected {
		if spansActiveProjects(affected[i].Rule.Method) {
			affected[i].Rule.TargetProjects = append([]string(nil), activeIDs...)
			if err := tx.SaveOperationalRecord(ctx, &affected[i]); err != nil {
				return 0, err
			}
		}
	}

	for i := range affected {
		record := &affected[i]
		newItems, calcWarnings := ComputeAllocations(record, projectSnapshot(projects))
		e.recordWarnings(calcWarnings)
		e.recordWarnings(ApplyDelta(projects, nil, newItems, touched))
		if err := tx.ReplaceLineItems(ctx, record.ID, newItems); err != nil {
			return 0, err
		}
		if onProgress != nil {
			onProgress(i+1, len(affected))
		}
	}
	if err := saveTouched(ctx, tx, projects, touched); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	slog.Info("recompute complete", "records", len(affected))
	return len(affected), nil
}

// GetProject returns a project by id.
func (e *Engine) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return e.storage.GetProject(ctx, id)
}

// GetProjects returns all projects.
func (e *Engine) GetProjects(ctx context.Context) ([]model.Project, error) {
	return e.storage.GetProjects(ctx)
}

// GetProjectSummary returns the cached emission summary for a project.
func (e *Engine) GetProjectSummary(ctx context.Context, id string) (model.EmissionSummary, error) {
	project, err := e.storage.GetProject(ctx, id)
	if err != nil {
		return model.EmissionSummary{}, err
	}
	return project.Summary, nil
}

// GetAllocatedEmissions sums the committed line items pointing at a
// project, bypassing the cached summary. Comparing the two is the
// drift check RecomputeAll repairs.
func (e *Engine) GetAllocatedEmissions(ctx context.Context, projectID string) (float64, error) {
	items, err := e.storage.GetLineItemsByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return SumAllocated(items), nil
}

// GetOperationalRecords returns all operational records.
func (e *Engine) GetOperationalRecords(ctx context.Context) ([]model.OperationalRecord, error) {
	return e.storage.GetOperationalRecords(ctx)
}

// GetLineItems returns the current line items for one record.
func (e *Engine) GetLineItems(ctx context.Context, recordID string) ([]model.AllocationLineItem, error) {
	return e.storage.GetLineItems(ctx, recordID)
}

// Report aggregates committed summaries across all projects.
func (e *Engine) Report(ctx context.Context) (*service.SummaryReport, error) {
	projects, err := e.storage.GetProjects(ctx)
	if err != nil {
		return nil, err
	}

	report := &service.SummaryReport{Projects: projects}
	for _, p := range projects {
		report.TotalDirect += p.Summary.DirectEmissions
		report.TotalAllocated += p.Summary.AllocatedEmissions
		report.TotalEmissions += p.Summary.TotalEmissions
	}

	records, err := e.storage.GetOperationalRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		items, err := e.storage.GetLineItems(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		report.UnallocatedTotal += r.Amount - SumAllocated(items)
	}
	return report, nil
}

// prepareRule validates a rule and fills in advisory defaults: equal,
// budget, and duration rules with no explicit targets span all currently
// active projects; custom rules default their target set to the
// percentage map's keys.
func (e *Engine) prepareRule(rule *model.AllocationRule, projects map[string]*model.Project) error {
	if rule == nil {
		return common.ErrInvalidRule
	}

	if len(rule.TargetProjects) == 0 {
		if rule.Method == model.MethodCustom {
			for id := range rule.CustomPercentages {
				rule.TargetProjects = append(rule.TargetProjects, id)
			}
			sort.Strings(rule.TargetProjects)
		} else {
			rule.TargetProjects = activeProjectIDs(projects)
		}
	}

	return ValidateRule(rule, projects)
}

// reallocate recomputes line items for the given records and applies the
// summary deltas, persisting every touched project.
func (e *Engine) reallocate(ctx context.Context, tx service.Transaction, records []model.OperationalRecord) error {
	if len(records) == 0 {
		return nil
	}

	projects, err := loadProjectMap(ctx, tx)
	if err != nil {
		return err
	}

	touched := make(map[string]bool)
	for i := range records {
		if err := e.reallocateOne(ctx, tx, &records[i], projects, touched); err != nil {
			return err
		}
	}
	return saveTouched(ctx, tx, projects, touched)
}

// reallocateOne replaces one record's line items. Removal of the old
// items and addition of the new ones land in the same delta, so a reader
// of committed state never sees the record half-allocated.
func (e *Engine) reallocateOne(ctx context.Context, tx service.Transaction, record *model.OperationalRecord, projects map[string]*model.Project, touched map[string]bool) error {
	oldItems, err := tx.GetLineItems(ctx, record.ID)
	if err != nil {
		return err
	}

	newItems, calcWarnings := ComputeAllocations(record, projectSnapshot(projects))
	e.recordWarnings(calcWarnings)
	e.recordWarnings(ApplyDelta(projects, oldItems, newItems, touched))

	return tx.ReplaceLineItems(ctx, record.ID, newItems)
}

// retireLineItems removes a record's line items and reverses their summary
// contribution.
func (e *Engine) retireLineItems(ctx context.Context, tx service.Transaction, recordID string) error {
	oldItems, err := tx.GetLineItems(ctx, recordID)
	if err != nil {
		return err
	}
	if len(oldItems) == 0 {
		return nil
	}

	projects, err := loadProjectMap(ctx, tx)
	if err != nil {
		return err
	}

	touched := make(map[string]bool)
	e.recordWarnings(ApplyDelta(projects, oldItems, nil, touched))
	if err := tx.ReplaceLineItems(ctx, recordID, nil); err != nil {
		return err
	}
	return saveTouched(ctx, tx, projects, touched)
}

func loadProjectMap(ctx context.Context, tx service.Transaction) (map[string]*model.Project, error) {
	list, err := tx.GetProjects(ctx)
	if err != nil {
		return nil, err
	}
	projects := make(map[string]*model.Project, len(list))
	for i := range list {
		projects[list[i].ID] = &list[i]
	}
	return projects, nil
}

// projectSnapshot flattens the project map into a slice sorted by id for
// the deterministic calculator input.
func projectSnapshot(projects map[string]*model.Project) []model.Project {
	snapshot := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		snapshot = append(snapshot, *p)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	return snapshot
}

func activeProjectIDs(projects map[string]*model.Project) []string {
	var ids []string
	for id, p := range projects {
		if p.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func saveTouched(ctx context.Context, tx service.Transaction, projects map[string]*model.Project, touched map[string]bool) error {
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p, ok := projects[id]
		if !ok {
			continue
		}
		if err := tx.SaveProject(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
