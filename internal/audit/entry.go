// Package audit is the append-only change log. Leave and sick-leave requests
// have no table of their own: the creating log row is the entity.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/scoped"
)

// Actions recorded by the platform.
const (
	ActionVacationRequest     = "VACATION_REQUEST"
	ActionTijdVoorTijdRequest = "TIJD_VOOR_TIJD_REQUEST"
	ActionSickLeaveRequest    = "SICK_LEAVE_REQUEST"
	ActionTimesheetCreate     = "TIMESHEET_CREATE"
	ActionTimesheetUpdate     = "TIMESHEET_UPDATE"
	ActionTimesheetDelete     = "TIMESHEET_DELETE"
	ActionTimesheetApprove    = "TIMESHEET_APPROVE"
	ActionTimesheetReject     = "TIMESHEET_REJECT"
	ActionLogin               = "LOGIN"
)

// VacationActions are both actions of the vacation family.
var VacationActions = []string{ActionVacationRequest, ActionTijdVoorTijdRequest}

// Entry is one stored audit row.
type Entry struct {
	ID         string          `json:"id"`
	TenantID   *string         `json:"tenantId"`
	UserID     string          `json:"userId"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *string         `json:"resourceId"`
	OldValues  json.RawMessage `json:"oldValues"`
	NewValues  json.RawMessage `json:"newValues"`
	CreatedAt  time.Time       `json:"createdAt"`
	IPAddress  *string         `json:"ipAddress"`
}

// Scope implements scoped.Record.
func (e Entry) Scope() (string, string) {
	if e.TenantID == nil {
		return "", e.UserID
	}
	return *e.TenantID, e.UserID
}

// WithScope implements scoped.Record.
func (e Entry) WithScope(tenantID, ownerID string) Entry {
	e.TenantID = optional(tenantID)
	e.UserID = ownerID
	return e
}

// Event is what callers hand to the store. Old and new values are marshalled
// to JSON; nil stays NULL.
type Event struct {
	Action     string
	Resource   string
	ResourceID string
	OldValues  any
	NewValues  any
	IPAddress  string
}

var entryKind = scoped.Kind{Name: "audit entry", TenantColumn: "tenant_id", OwnerColumn: "user_id"}

var entryColumns = []string{
	"id", "tenant_id", "user_id", "action", "resource", "resource_id",
	"old_values", "new_values", "created_at", "ip_address",
}

// Mapping is the audit_logs table mapping.
func Mapping() db.Mapping[Entry] {
	return db.Mapping[Entry]{
		Table:   "audit_logs",
		Columns: entryColumns,
		Scan:    scanEntry,
		Values: func(e Entry) []any {
			return []any{
				e.ID, e.TenantID, e.UserID, e.Action, e.Resource, e.ResourceID,
				nullJSON(e.OldValues), nullJSON(e.NewValues), e.CreatedAt, e.IPAddress,
			}
		},
	}
}

// NewTable binds the audit_logs mapping to q.
func NewTable(q db.Querier) db.Table[Entry] {
	return db.NewTable(q, Mapping())
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e        Entry
		oldValue []byte
		newValue []byte
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID,
		&oldValue, &newValue, &e.CreatedAt, &e.IPAddress); err != nil {
		return Entry{}, err
	}
	e.OldValues = oldValue
	e.NewValues = newValue
	return e, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func marshalValues(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal values: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
