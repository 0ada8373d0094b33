package timesheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/scoped"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// ErrNotPending is returned when a change requires a PENDING timesheet.
var ErrNotPending = &shared.Error{Kind: shared.KindConflict, Message: "timesheet is no longer pending"}

// Recorder receives best-effort audit events.
type Recorder interface {
	Append(ctx context.Context, actx tenancy.ActingContext, ev audit.Event)
}

// Service implements timesheet use cases on top of the scoped table.
type Service struct {
	table  db.Table[Timesheet]
	guard  *access.Guard
	audit  Recorder
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService constructs the service.
func NewService(table db.Table[Timesheet], guard *access.Guard, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		table:  table,
		guard:  guard,
		audit:  recorder,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Collection returns the scoped view of the table for actx.
func (s *Service) Collection(actx tenancy.ActingContext) *scoped.Collection[Timesheet] {
	return scoped.New[Timesheet](s.table, Kind, actx)
}

// ListFilter narrows a listing.
type ListFilter struct {
	Status Status
	UserID string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

// Query translates the filter into a table query, newest first.
func (f ListFilter) Query() db.Query {
	var where []db.Cond
	if f.Status != "" {
		where = append(where, db.Eq("status", string(f.Status)))
	}
	if f.UserID != "" {
		where = append(where, db.Eq("user_id", f.UserID))
	}
	if !f.From.IsZero() {
		where = append(where, db.GTE("work_date", f.From))
	}
	if !f.To.IsZero() {
		where = append(where, db.LT("work_date", f.To))
	}
	p := shared.NewPagination(f.Page, f.Limit, 0)
	return db.Query{
		Where:   where,
		OrderBy: []db.Order{{Column: "created_at", Desc: true}, {Column: "id"}},
		Limit:   p.Limit,
		Offset:  p.Offset(),
	}
}

// List returns one page of timesheets visible to the caller.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Timesheet, shared.Pagination, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermTimesheetView)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	q := filter.Query()
	coll := s.Collection(actx)
	rows, err := coll.FindMany(ctx, q)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("timesheets: list: %w", err)
	}
	total, err := coll.Count(ctx, q)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("timesheets: count: %w", err)
	}
	return rows, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

// CreateInput carries a new shift.
type CreateInput struct {
	UserID       string
	Date         time.Time
	StartTime    time.Time
	EndTime      *time.Time
	BreakMinutes int
	Description  string
	IPAddress    string
}

// Create stores a PENDING timesheet. USER callers always create their own;
// approvers may create on behalf of members they manage.
func (s *Service) Create(ctx context.Context, in CreateInput) (Timesheet, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermTimesheetCreate)
	if err != nil {
		return Timesheet{}, err
	}
	if actx.Role != rbac.RoleUser && in.UserID != "" && in.UserID != actx.UserID {
		if _, err := s.guard.RequireResourceAccess(ctx, access.ResourceUser, in.UserID, rbac.PermTimesheetCreate); err != nil {
			return Timesheet{}, err
		}
	}
	if err := validateTimes(in.StartTime, in.EndTime, in.BreakMinutes); err != nil {
		return Timesheet{}, err
	}
	now := s.now()
	created, err := s.Collection(actx).Create(ctx, Timesheet{
		ID:           s.newID(),
		UserID:       in.UserID,
		Date:         in.Date,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		BreakMinutes: in.BreakMinutes,
		Description:  in.Description,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Timesheet{}, err
	}
	s.audit.Append(ctx, actx, audit.Event{
		Action:     audit.ActionTimesheetCreate,
		Resource:   "timesheet",
		ResourceID: created.ID,
		NewValues:  snapshot(created),
		IPAddress:  in.IPAddress,
	})
	return created, nil
}

// UpdateInput holds optional field changes. ClockOut sets EndTime to now only
// when no field is edited and the stored row has no end time yet; clocking out
// a finished timesheet is a no-op.
type UpdateInput struct {
	StartTime    *time.Time
	EndTime      *time.Time
	BreakMinutes *int
	Description  *string
	ClockOut     bool
	IPAddress    string
}

// HasEdits reports whether any field change is present.
func (in UpdateInput) HasEdits() bool {
	return in.StartTime != nil || in.EndTime != nil || in.BreakMinutes != nil || in.Description != nil
}

// Update edits a PENDING timesheet.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Timesheet, error) {
	actx, err := s.guard.RequireResourceAccess(ctx, access.ResourceTimesheet, id, rbac.PermTimesheetEdit)
	if err != nil {
		return Timesheet{}, err
	}
	coll := s.Collection(actx)
	current, err := coll.FindOne(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}

	patch := db.Patch{}
	start, end, breakMinutes := current.StartTime, current.EndTime, current.BreakMinutes
	if in.StartTime != nil {
		start = *in.StartTime
		patch["start_time"] = start
	}
	if in.ClockOut && !in.HasEdits() && current.EndTime == nil {
		now := s.now()
		in.EndTime = &now
	}
	if in.EndTime != nil {
		end = in.EndTime
		patch["end_time"] = *end
	}
	if in.BreakMinutes != nil {
		breakMinutes = *in.BreakMinutes
		patch["break_minutes"] = breakMinutes
	}
	if in.Description != nil {
		patch["description"] = *in.Description
	}
	if len(patch) == 0 {
		return current, nil
	}
	if err := validateTimes(start, end, breakMinutes); err != nil {
		return Timesheet{}, err
	}
	patch["updated_at"] = s.now()

	updated, err := coll.Update(ctx, id, patch, db.Eq("status", string(StatusPending)))
	if err != nil {
		if errors.Is(err, db.ErrNoRowsAffected) {
			return Timesheet{}, ErrNotPending
		}
		return Timesheet{}, err
	}
	s.audit.Append(ctx, actx, audit.Event{
		Action:     audit.ActionTimesheetUpdate,
		Resource:   "timesheet",
		ResourceID: id,
		OldValues:  snapshot(current),
		NewValues:  snapshot(updated),
		IPAddress:  in.IPAddress,
	})
	return updated, nil
}

// Delete removes a timesheet while it is still PENDING.
func (s *Service) Delete(ctx context.Context, id, ip string) error {
	actx, err := s.guard.RequireResourceAccess(ctx, access.ResourceTimesheet, id, rbac.PermTimesheetDelete)
	if err != nil {
		return err
	}
	coll := s.Collection(actx)
	current, err := coll.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if err := coll.Delete(ctx, id, db.Eq("status", string(StatusPending))); err != nil {
		if errors.Is(err, db.ErrNoRowsAffected) {
			return ErrNotPending
		}
		return err
	}
	s.audit.Append(ctx, actx, audit.Event{
		Action:     audit.ActionTimesheetDelete,
		Resource:   "timesheet",
		ResourceID: id,
		OldValues:  snapshot(current),
		IPAddress:  ip,
	})
	return nil
}

// Decide moves a PENDING timesheet to APPROVED or REJECTED with a single
// conditional update, then records the decision. A row outside the caller's
// scope is reported as not found; a row already decided as ErrNotPending.
func (s *Service) Decide(ctx context.Context, actx tenancy.ActingContext, id string, to Status, comment, ip string) (Timesheet, error) {
	if !CanTransition(StatusPending, to) {
		return Timesheet{}, fmt.Errorf("timesheets: invalid target status %q", to)
	}
	coll := s.Collection(actx)
	current, err := coll.FindOne(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	if !CanTransition(current.Status, to) {
		return Timesheet{}, ErrNotPending
	}
	updated, err := coll.Update(ctx, id, db.Patch{
		"status":     string(to),
		"updated_at": s.now(),
	}, db.Eq("status", string(StatusPending)))
	if err != nil {
		if errors.Is(err, db.ErrNoRowsAffected) {
			return Timesheet{}, ErrNotPending
		}
		return Timesheet{}, err
	}

	action := audit.ActionTimesheetApprove
	if to == StatusRejected {
		action = audit.ActionTimesheetReject
	}
	newValues := map[string]any{"status": string(to)}
	if comment != "" {
		newValues["comment"] = comment
	}
	s.audit.Append(ctx, actx, audit.Event{
		Action:     action,
		Resource:   "timesheet",
		ResourceID: id,
		OldValues:  map[string]any{"status": string(current.Status)},
		NewValues:  newValues,
		IPAddress:  ip,
	})
	return updated, nil
}

func validateTimes(start time.Time, end *time.Time, breakMinutes int) error {
	fields := map[string]string{}
	if start.IsZero() {
		fields["startTime"] = "required"
	}
	if end != nil && !end.After(start) {
		fields["endTime"] = "gtfield"
	}
	if breakMinutes < 0 {
		fields["breakMinutes"] = "min"
	}
	if end != nil && breakMinutes > 0 && time.Duration(breakMinutes)*time.Minute >= end.Sub(start) {
		fields["breakMinutes"] = "ltshift"
	}
	if len(fields) > 0 {
		return shared.ValidationFailed(fields)
	}
	return nil
}

func snapshot(t Timesheet) map[string]any {
	out := map[string]any{
		"date":         t.Date.Format(dateLayout),
		"startTime":    t.StartTime,
		"breakMinutes": t.BreakMinutes,
		"description":  t.Description,
		"status":       string(t.Status),
		"userId":       t.UserID,
	}
	if t.EndTime != nil {
		out["endTime"] = *t.EndTime
	}
	return out
}
