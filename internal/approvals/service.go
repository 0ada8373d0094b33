package approvals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/scoped"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
	"github.com/workforce-hq/workforce/internal/timesheets"
)

// SourceCap bounds how many rows each source contributes to the merged view.
const SourceCap = 100

// Timesheets is the first-class source. *timesheets.Service satisfies it.
type Timesheets interface {
	Collection(actx tenancy.ActingContext) *scoped.Collection[timesheets.Timesheet]
	Decide(ctx context.Context, actx tenancy.ActingContext, id string, to timesheets.Status, comment, ip string) (timesheets.Timesheet, error)
}

// VirtualLog lists log-backed entities. *audit.Store satisfies it.
type VirtualLog interface {
	ListVirtual(ctx context.Context, actx tenancy.ActingContext, q audit.VirtualQuery) ([]audit.Entry, int, error)
}

// NameDirectory resolves display names in one round trip.
type NameDirectory interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Service builds the approval queue.
type Service struct {
	guard      *access.Guard
	timesheets Timesheets
	log        VirtualLog
	names      NameDirectory
	logger     *slog.Logger
}

// NewService constructs the aggregator. names may be nil.
func NewService(guard *access.Guard, ts Timesheets, log VirtualLog, names NameDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guard: guard, timesheets: ts, log: log, names: names, logger: logger}
}

// ListInput selects a queue page.
type ListInput struct {
	Type   Filter
	Status string
	Page   int
	Limit  int
}

// Page is one page of the queue.
type Page struct {
	Items      []Item            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// window is a source request: limit/offset for a paged source or the cap for
// the merged view.
type window struct {
	limit  int
	offset int
}

type sourceResult struct {
	items []Item
	total int
}

// List returns one page of the queue visible to the caller.
func (s *Service) List(ctx context.Context, in ListInput) (Page, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermTimesheetApprove)
	if err != nil {
		return Page{}, err
	}
	filter := in.Type
	if filter == "" {
		filter = FilterAll
	}
	status, err := timesheets.ParseStatus(defaultStatus(in.Status))
	if err != nil {
		return Page{}, shared.ValidationFailed(map[string]string{"status": "oneof"})
	}
	page, limit := shared.NormalizePage(in.Page, in.Limit)
	paged := window{limit: limit, offset: (page - 1) * limit}

	var res sourceResult
	switch filter {
	case FilterTimesheet:
		res, err = s.fromTimesheets(ctx, actx, status, paged)
	case FilterVacation:
		res, err = s.fromLog(ctx, actx, audit.VacationActions, status, paged, FromVacation)
	case FilterSickLeave:
		res, err = s.fromLog(ctx, actx, []string{audit.ActionSickLeaveRequest}, status, paged, FromSickLeave)
	case FilterAll:
		res, err = s.merged(ctx, actx, status, paged)
	default:
		return Page{}, shared.ValidationFailed(map[string]string{"type": "oneof"})
	}
	if err != nil {
		return Page{}, err
	}
	s.fillNames(ctx, res.items)
	if res.items == nil {
		res.items = []Item{}
	}
	return Page{Items: res.items, Pagination: shared.NewPagination(page, limit, res.total)}, nil
}

func (s *Service) merged(ctx context.Context, actx tenancy.ActingContext, status timesheets.Status, paged window) (sourceResult, error) {
	capped := window{limit: SourceCap}
	var parts [3]sourceResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		parts[0], err = s.fromTimesheets(gctx, actx, status, capped)
		return err
	})
	g.Go(func() error {
		var err error
		parts[1], err = s.fromLog(gctx, actx, audit.VacationActions, status, capped, FromVacation)
		return err
	})
	g.Go(func() error {
		var err error
		parts[2], err = s.fromLog(gctx, actx, []string{audit.ActionSickLeaveRequest}, status, capped, FromSickLeave)
		return err
	})
	if err := g.Wait(); err != nil {
		return sourceResult{}, err
	}

	var all []Item
	total := 0
	for _, p := range parts {
		all = append(all, p.items...)
		total += p.total
	}
	slices.SortFunc(all, func(a, b Item) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	if paged.offset >= len(all) {
		return sourceResult{total: total}, nil
	}
	end := min(paged.offset+paged.limit, len(all))
	return sourceResult{items: all[paged.offset:end], total: total}, nil
}

func (s *Service) fromTimesheets(ctx context.Context, actx tenancy.ActingContext, status timesheets.Status, w window) (sourceResult, error) {
	coll := s.timesheets.Collection(actx)
	q := db.Query{
		Where:   []db.Cond{db.Eq("status", string(status))},
		OrderBy: []db.Order{{Column: "created_at", Desc: true}, {Column: "id"}},
		Limit:   w.limit,
		Offset:  w.offset,
	}
	rows, err := coll.FindMany(ctx, q)
	if err != nil {
		return sourceResult{}, fmt.Errorf("approvals: timesheets: %w", err)
	}
	total, err := coll.Count(ctx, q)
	if err != nil {
		return sourceResult{}, fmt.Errorf("approvals: count timesheets: %w", err)
	}
	items := make([]Item, 0, len(rows))
	for _, t := range rows {
		items = append(items, FromTimesheet(t))
	}
	return sourceResult{items: items, total: total}, nil
}

func (s *Service) fromLog(ctx context.Context, actx tenancy.ActingContext, actions []string, status timesheets.Status, w window, project func(audit.Entry) (Item, error)) (sourceResult, error) {
	rows, total, err := s.log.ListVirtual(ctx, actx, audit.VirtualQuery{
		Actions: actions,
		Status:  strings.ToLower(string(status)),
		Limit:   w.limit,
		Offset:  w.offset,
	})
	if err != nil {
		return sourceResult{}, fmt.Errorf("approvals: %s: %w", strings.Join(actions, ","), err)
	}
	items := make([]Item, 0, len(rows))
	for _, e := range rows {
		item, err := project(e)
		if err != nil {
			s.logger.Warn("approvals: skip unreadable row", slog.String("id", e.ID), slog.String("action", e.Action), slog.Any("error", err))
			continue
		}
		items = append(items, item)
	}
	return sourceResult{items: items, total: total}, nil
}

// fillNames resolves missing employee names. Lookup failures leave names
// empty.
func (s *Service) fillNames(ctx context.Context, items []Item) {
	if s.names == nil {
		return
	}
	var ids []string
	for _, it := range items {
		if it.EmployeeName == "" && it.EmployeeID != "" && !slices.Contains(ids, it.EmployeeID) {
			ids = append(ids, it.EmployeeID)
		}
	}
	if len(ids) == 0 {
		return
	}
	names, err := s.names.DisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("approvals: resolve employee names", slog.Any("error", err))
		return
	}
	for i := range items {
		if items[i].EmployeeName == "" {
			items[i].EmployeeName = names[items[i].EmployeeID]
		}
	}
}

// Action is a bulk decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// DecideInput is a bulk decision request.
type DecideInput struct {
	IDs       []string
	Action    Action
	Comment   string
	IPAddress string
}

// DecideResult reports which ids changed state.
type DecideResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	ProcessedIDs []string `json:"processedIds"`
}

// Decide applies action to every id independently. Ids that are missing, out
// of scope or no longer pending are skipped. Only timesheet ids are
// processed: leave ids are skipped without error. Any other failure stops
// the batch; ids decided before it stay decided.
func (s *Service) Decide(ctx context.Context, in DecideInput) (DecideResult, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermTimesheetApprove)
	if err != nil {
		return DecideResult{}, err
	}
	var to timesheets.Status
	switch in.Action {
	case ActionApprove:
		to = timesheets.StatusApproved
	case ActionReject:
		to = timesheets.StatusRejected
	default:
		return DecideResult{}, shared.ValidationFailed(map[string]string{"action": "oneof"})
	}
	comment := strings.TrimSpace(in.Comment)

	processed := []string{}
	seen := make(map[string]bool, len(in.IDs))
	for _, id := range in.IDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.timesheets.Decide(ctx, actx, id, to, comment, in.IPAddress); err != nil {
			if skippable(err) {
				s.logger.Debug("approvals: item skipped", slog.String("id", id), slog.Any("error", err))
				continue
			}
			s.logger.Error("approvals: item failed", slog.String("id", id), slog.Any("error", err))
			return DecideResult{}, fmt.Errorf("approvals: %s %s: %w", in.Action, id, err)
		}
		processed = append(processed, id)
	}
	return DecideResult{
		Success:      true,
		Message:      fmt.Sprintf("%d of %d item(s) %s", len(processed), len(seen), pastTense(in.Action)),
		ProcessedIDs: processed,
	}, nil
}

func skippable(err error) bool {
	return errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrConflict)
}

func pastTense(a Action) string {
	if a == ActionReject {
		return "rejected"
	}
	return "approved"
}

func defaultStatus(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return string(timesheets.StatusPending)
	}
	return raw
}
