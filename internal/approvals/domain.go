// Package approvals merges timesheets and log-backed leave requests into one
// approval queue and applies bulk decisions.
package approvals

import (
	"fmt"
	"strings"
	"time"

	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/leave"
	"github.com/workforce-hq/workforce/internal/timesheets"
)

// Filter selects a queue source.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterTimesheet Filter = "timesheet"
	FilterVacation  Filter = "vacation"
	FilterSickLeave Filter = "sickleave"
)

// ParseFilter defaults to all.
func ParseFilter(raw string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterTimesheet, FilterVacation, FilterSickLeave:
		return f, nil
	}
	return "", fmt.Errorf("approvals: unknown type %q", raw)
}

// ItemType tags the variant of an Item.
type ItemType string

const (
	ItemTimesheet    ItemType = "timesheet"
	ItemVacation     ItemType = "vacation"
	ItemTijdVoorTijd ItemType = "tijd-voor-tijd"
	ItemSickLeave    ItemType = "sickleave"
)

// Item is one queue entry. Common fields come first; the rest are set only
// for the variants that carry them.
type Item struct {
	ID           string    `json:"id"`
	Type         ItemType  `json:"type"`
	EmployeeID   string    `json:"employeeId"`
	EmployeeName string    `json:"employeeName"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Status       string    `json:"status"`

	// timesheet
	Date         string     `json:"date,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	BreakMinutes *int       `json:"breakMinutes,omitempty"`
	Hours        string     `json:"hours,omitempty"`

	// vacation, tijd-voor-tijd, sickleave
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	TotalDays *int   `json:"totalDays,omitempty"`

	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
	UWVReported *bool  `json:"uwvReported,omitempty"`
}

// FromTimesheet projects a timesheet row.
func FromTimesheet(t timesheets.Timesheet) Item {
	start := t.StartTime
	breakMinutes := t.BreakMinutes
	item := Item{
		ID:           t.ID,
		Type:         ItemTimesheet,
		EmployeeID:   t.UserID,
		SubmittedAt:  t.CreatedAt,
		Status:       normalizeStatus(string(t.Status)),
		Date:         t.Date.Format("2006-01-02"),
		StartTime:    &start,
		BreakMinutes: &breakMinutes,
		Hours:        t.WorkedHours().StringFixed(2),
		Description:  t.Description,
	}
	if t.EndTime != nil {
		end := *t.EndTime
		item.EndTime = &end
	}
	return item
}

// FromVacation projects a VACATION_REQUEST or TIJD_VOOR_TIJD_REQUEST row. It
// depends on nothing but the row.
func FromVacation(e audit.Entry) (Item, error) {
	rec, err := leave.DecodeVacation(e)
	if err != nil {
		return Item{}, err
	}
	kind := ItemVacation
	if rec.Type == leave.TypeTijdVoorTijd {
		kind = ItemTijdVoorTijd
	}
	days := rec.TotalDays
	return Item{
		ID:           e.ID,
		Type:         kind,
		EmployeeID:   rec.EmployeeID,
		EmployeeName: rec.EmployeeName,
		SubmittedAt:  e.CreatedAt,
		Status:       normalizeStatus(rec.Status),
		StartDate:    rec.StartDate,
		EndDate:      rec.EndDate,
		TotalDays:    &days,
		Description:  rec.Description,
	}, nil
}

// FromSickLeave projects a SICK_LEAVE_REQUEST row.
func FromSickLeave(e audit.Entry) (Item, error) {
	rec, err := leave.DecodeSickLeave(e)
	if err != nil {
		return Item{}, err
	}
	uwv := rec.UWVReported
	item := Item{
		ID:           e.ID,
		Type:         ItemSickLeave,
		EmployeeID:   rec.EmployeeID,
		EmployeeName: rec.EmployeeName,
		SubmittedAt:  e.CreatedAt,
		Status:       normalizeStatus(rec.Status),
		StartDate:    rec.StartDate,
		Reason:       rec.Reason,
		UWVReported:  &uwv,
	}
	if rec.EndDate != nil {
		item.EndDate = *rec.EndDate
	}
	if rec.TotalDays != nil {
		days := *rec.TotalDays
		item.TotalDays = &days
	}
	return item, nil
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// less orders items newest first, then by id.
func less(a, b Item) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID < b.ID
}
