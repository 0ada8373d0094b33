// Package timesheetstest provides an in-memory timesheets table for tests in
// other packages.
package timesheetstest

import (
	"time"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/platform/db/dbtest"
	"github.com/workforce-hq/workforce/internal/timesheets"
)

// Schema describes timesheets.Timesheet for dbtest.MemTable.
func Schema() dbtest.Schema[timesheets.Timesheet] {
	return dbtest.Schema[timesheets.Timesheet]{
		ID: func(t timesheets.Timesheet) string { return t.ID },
		Field: func(t timesheets.Timesheet, column string) any {
			switch column {
			case "id":
				return t.ID
			case "tenant_id":
				return t.TenantID
			case "user_id":
				return t.UserID
			case "status":
				return string(t.Status)
			case "work_date":
				return t.Date
			case "created_at":
				return t.CreatedAt
			}
			return nil
		},
		Apply: func(t timesheets.Timesheet, patch db.Patch) timesheets.Timesheet {
			for col, v := range patch {
				switch col {
				case "status":
					t.Status = timesheets.Status(v.(string))
				case "updated_at":
					t.UpdatedAt = v.(time.Time)
				case "description":
					t.Description = v.(string)
				}
			}
			return t
		},
	}
}

// NewTable returns an in-memory timesheets table holding rows.
func NewTable(rows ...timesheets.Timesheet) *dbtest.MemTable[timesheets.Timesheet] {
	return dbtest.New(Schema(), rows...)
}

// Pending builds a PENDING shift submitted at created.
func Pending(id, tenantID, userID string, created time.Time) timesheets.Timesheet {
	start := time.Date(created.Year(), created.Month(), created.Day(), 8, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	return timesheets.Timesheet{
		ID:           id,
		TenantID:     tenantID,
		UserID:       userID,
		Date:         start.Truncate(24 * time.Hour),
		StartTime:    start,
		EndTime:      &end,
		BreakMinutes: 30,
		Status:       timesheets.StatusPending,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}
