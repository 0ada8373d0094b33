package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// NameResolver looks up a display name for an employee.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Service implements leave use cases.
type Service struct {
	store  Store
	guard  *access.Guard
	names  NameResolver
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(store Store, guard *access.Guard, names NameResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, guard: guard, names: names, logger: logger}
}

// VacationInput is a validated POST /vacations body.
type VacationInput struct {
	StartDate   time.Time
	EndDate     time.Time
	Description string
	Type        string
}

// SickLeaveInput is a validated POST /sick-leaves body.
type SickLeaveInput struct {
	StartDate          time.Time
	EndDate            *time.Time
	Reason             string
	MedicalNote        string
	UWVReported        bool
	ExpectedReturnDate *time.Time
}

// Meta carries request scoped details stored with the row.
type Meta struct {
	IdempotencyKey string
	IPAddress      string
}

// Vacation is a stored vacation-family request.
type Vacation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	VacationRecord
}

// SickLeave is a stored sick-leave request.
type SickLeave struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	SickLeaveRecord
}

func (s *Service) requester(ctx context.Context) (tenancy.ActingContext, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermLeaveRequest)
	if err != nil {
		return actx, err
	}
	if actx.TenantID == "" {
		return actx, shared.ValidationFailed(map[string]string{"tenant": "required"})
	}
	return actx, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	if s.names == nil {
		return ""
	}
	name, err := s.names.DisplayName(ctx, userID)
	if err != nil {
		s.logger.Warn("leave: resolve employee name", slog.String("user_id", userID), slog.Any("error", err))
		return ""
	}
	return name
}

// RequestVacation stores a pending vacation or tijd-voor-tijd request.
func (s *Service) RequestVacation(ctx context.Context, in VacationInput, meta Meta) (Vacation, error) {
	actx, err := s.requester(ctx)
	if err != nil {
		return Vacation{}, err
	}
	action, err := ActionForType(in.Type)
	if err != nil {
		return Vacation{}, shared.ValidationFailed(map[string]string{"type": "oneof"})
	}
	if in.EndDate.Before(in.StartDate) {
		return Vacation{}, shared.ValidationFailed(map[string]string{"endDate": "gtefield"})
	}
	rec := VacationRecord{
		Type:         in.Type,
		StartDate:    in.StartDate.Format(dateLayout),
		EndDate:      in.EndDate.Format(dateLayout),
		TotalDays:    TotalDays(in.StartDate, in.EndDate),
		Description:  strings.TrimSpace(in.Description),
		Status:       StatusPending,
		EmployeeID:   actx.UserID,
		EmployeeName: s.displayName(ctx, actx.UserID),
	}
	entry, err := s.store.Create(ctx, actx, audit.Event{
		Action:    action,
		Resource:  "leave",
		NewValues: rec,
		IPAddress: meta.IPAddress,
	}, meta.IdempotencyKey)
	if err != nil {
		return Vacation{}, fmt.Errorf("leave: request vacation: %w", err)
	}
	return Vacation{ID: entry.ID, CreatedAt: entry.CreatedAt, VacationRecord: rec}, nil
}

// RequestSickLeave stores a pending sick-leave report.
func (s *Service) RequestSickLeave(ctx context.Context, in SickLeaveInput, meta Meta) (SickLeave, error) {
	actx, err := s.requester(ctx)
	if err != nil {
		return SickLeave{}, err
	}
	rec := SickLeaveRecord{
		StartDate:    in.StartDate.Format(dateLayout),
		Reason:       strings.TrimSpace(in.Reason),
		MedicalNote:  strings.TrimSpace(in.MedicalNote),
		UWVReported:  in.UWVReported,
		Status:       StatusPending,
		EmployeeID:   actx.UserID,
		EmployeeName: s.displayName(ctx, actx.UserID),
	}
	if in.EndDate != nil {
		if in.EndDate.Before(in.StartDate) {
			return SickLeave{}, shared.ValidationFailed(map[string]string{"endDate": "gtefield"})
		}
		end := in.EndDate.Format(dateLayout)
		days := TotalDays(in.StartDate, *in.EndDate)
		rec.EndDate, rec.TotalDays = &end, &days
	}
	if in.ExpectedReturnDate != nil {
		if in.ExpectedReturnDate.Before(in.StartDate) {
			return SickLeave{}, shared.ValidationFailed(map[string]string{"expectedReturnDate": "gtefield"})
		}
		ret := in.ExpectedReturnDate.Format(dateLayout)
		rec.ExpectedReturnDate = &ret
	}
	entry, err := s.store.Create(ctx, actx, audit.Event{
		Action:    audit.ActionSickLeaveRequest,
		Resource:  "sick_leave",
		NewValues: rec,
		IPAddress: meta.IPAddress,
	}, meta.IdempotencyKey)
	if err != nil {
		return SickLeave{}, fmt.Errorf("leave: request sick leave: %w", err)
	}
	return SickLeave{ID: entry.ID, CreatedAt: entry.CreatedAt, SickLeaveRecord: rec}, nil
}

// ListFilter narrows leave listings.
type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

func (s *Service) list(ctx context.Context, actions []string, f ListFilter) ([]audit.Entry, shared.Pagination, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermLeaveView)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(f.Page, f.Limit, 0)
	rows, total, err := s.store.List(ctx, actx, audit.VirtualQuery{
		Actions: actions,
		Status:  f.Status,
		Limit:   page.Limit,
		Offset:  page.Offset(),
	})
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("leave: list: %w", err)
	}
	return rows, shared.NewPagination(page.Page, page.Limit, total), nil
}

// ListVacations lists vacation-family requests. USER callers see their own.
// Rows whose stored values do not decode are logged and left out.
func (s *Service) ListVacations(ctx context.Context, f ListFilter) ([]Vacation, shared.Pagination, error) {
	rows, page, err := s.list(ctx, audit.VacationActions, f)
	if err != nil {
		return nil, page, err
	}
	out := make([]Vacation, 0, len(rows))
	for _, e := range rows {
		rec, err := DecodeVacation(e)
		if err != nil {
			s.logger.Warn("leave: skip unreadable vacation", slog.String("id", e.ID), slog.Any("error", err))
			continue
		}
		out = append(out, Vacation{ID: e.ID, CreatedAt: e.CreatedAt, VacationRecord: rec})
	}
	return out, page, nil
}

// ListSickLeaves lists sick-leave requests. USER callers see their own.
func (s *Service) ListSickLeaves(ctx context.Context, f ListFilter) ([]SickLeave, shared.Pagination, error) {
	rows, page, err := s.list(ctx, []string{audit.ActionSickLeaveRequest}, f)
	if err != nil {
		return nil, page, err
	}
	out := make([]SickLeave, 0, len(rows))
	for _, e := range rows {
		rec, err := DecodeSickLeave(e)
		if err != nil {
			s.logger.Warn("leave: skip unreadable sick leave", slog.String("id", e.ID), slog.Any("error", err))
			continue
		}
		out = append(out, SickLeave{ID: e.ID, CreatedAt: e.CreatedAt, SickLeaveRecord: rec})
	}
	return out, page, nil
}
