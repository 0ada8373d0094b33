// Package timesheets owns first-class timesheet rows and their approval state
// machine: PENDING moves to APPROVED or REJECTED and never back.
package timesheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/workforce-hq/workforce/internal/scoped"
)

// Status of a timesheet.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus accepts any casing.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, nil
	}
	return "", fmt.Errorf("timesheets: unknown status %q", raw)
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusApproved || to == StatusRejected)
}

// Timesheet is one worked shift.
type Timesheet struct {
	ID           string
	TenantID     string
	UserID       string
	Date         time.Time
	StartTime    time.Time
	EndTime      *time.Time
	BreakMinutes int
	Description  string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Scope implements scoped.Record.
func (t Timesheet) Scope() (string, string) {
	return t.TenantID, t.UserID
}

// WithScope implements scoped.Record.
func (t Timesheet) WithScope(tenantID, ownerID string) Timesheet {
	t.TenantID, t.UserID = tenantID, ownerID
	return t
}

// WorkedHours is the shift length minus the break, rounded to two decimals.
// Open shifts count zero.
func (t Timesheet) WorkedHours() decimal.Decimal {
	if t.EndTime == nil || !t.EndTime.After(t.StartTime) {
		return decimal.Zero
	}
	minutes := int64(t.EndTime.Sub(t.StartTime)/time.Minute) - int64(t.BreakMinutes)
	if minutes <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
}

// Kind is the scoping description of the timesheets table.
var Kind = scoped.Kind{Name: "timesheet", TenantColumn: "tenant_id", OwnerColumn: "user_id"}

const dateLayout = "2006-01-02"
