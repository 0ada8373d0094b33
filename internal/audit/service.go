package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/scoped"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxExportRows caps a single CSV export.
	MaxExportRows = 10000
)

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	table db.Table[Entry]
}

// NewService membuat service audit timeline baru.
func NewService(table db.Table[Entry]) *Service {
	return &Service{table: table}
}

// Timeline mengambil data audit dengan paging.
func (s *Service) Timeline(ctx context.Context, actx tenancy.ActingContext, filters TimelineFilters) (Result, error) {
	if s.table == nil {
		return Result{}, fmt.Errorf("audit: table not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	query := timelineQuery(filters)
	query.Limit = pageSize + 1
	query.Offset = (page - 1) * pageSize

	entries, err := scoped.New[Entry](s.table, timelineKind, actx).FindMany(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	rows := toTimelineRows(entries)
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil seluruh data timeline tanpa paging, dibatasi MaxExportRows.
func (s *Service) Export(ctx context.Context, actx tenancy.ActingContext, filters TimelineFilters) ([]TimelineRow, error) {
	if s.table == nil {
		return nil, fmt.Errorf("audit: table not configured")
	}
	query := timelineQuery(filters)
	query.Limit = MaxExportRows
	entries, err := scoped.New[Entry](s.table, timelineKind, actx).FindMany(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return toTimelineRows(entries), nil
}

// The timeline is read by approvers and admins, so rows are not narrowed to
// their author.
var timelineKind = scoped.Kind{Name: "audit entry", TenantColumn: "tenant_id"}

func timelineQuery(filters TimelineFilters) db.Query {
	var where []db.Cond
	if !filters.From.IsZero() {
		where = append(where, db.GTE("created_at", filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, db.LT("created_at", filters.To))
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		where = append(where, db.Eq("user_id", v))
	}
	if v := strings.TrimSpace(filters.Resource); v != "" {
		where = append(where, db.Eq("resource", v))
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		where = append(where, db.Eq("action", strings.ToUpper(v)))
	}
	return db.Query{
		Where:   where,
		OrderBy: []db.Order{{Column: "created_at", Desc: true}, {Column: "id"}},
	}
}

// toTimelineRows never fails: a row whose values cannot be diffed is kept
// without changes and flagged Unreadable.
func toTimelineRows(entries []Entry) []TimelineRow {
	rows := make([]TimelineRow, 0, len(entries))
	for _, e := range entries {
		changes, err := Diff(e.OldValues, e.NewValues)
		row := TimelineRow{
			ID:         e.ID,
			At:         e.CreatedAt,
			Actor:      e.UserID,
			Action:     e.Action,
			Resource:   e.Resource,
			Changes:    changes,
			Unreadable: err != nil,
		}
		if e.TenantID != nil {
			row.TenantID = *e.TenantID
		}
		if e.ResourceID != nil {
			row.ResourceID = *e.ResourceID
		}
		if e.IPAddress != nil {
			row.IPAddress = *e.IPAddress
		}
		rows = append(rows, row)
	}
	return rows
}

// Diff returns the JSON patch turning oldValues into newValues. A missing side
// is treated as an empty object.
func Diff(oldValues, newValues json.RawMessage) (jsondiff.Patch, error) {
	if len(oldValues) == 0 && len(newValues) == 0 {
		return nil, nil
	}
	return jsondiff.CompareJSON(orEmptyObject(oldValues), orEmptyObject(newValues))
}

func orEmptyObject(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}")
	}
	return raw
}
