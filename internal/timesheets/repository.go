package timesheets

import (
	"github.com/jackc/pgx/v5"

	"github.com/workforce-hq/workforce/internal/platform/db"
)

var columns = []string{
	"id", "tenant_id", "user_id", "work_date", "start_time", "end_time",
	"break_minutes", "description", "status", "created_at", "updated_at",
}

// Mapping is the timesheets table mapping.
func Mapping() db.Mapping[Timesheet] {
	return db.Mapping[Timesheet]{
		Table:   "timesheets",
		Columns: columns,
		Scan: func(row pgx.Row) (Timesheet, error) {
			var t Timesheet
			var status string
			err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &t.Date, &t.StartTime, &t.EndTime,
				&t.BreakMinutes, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt)
			t.Status = Status(status)
			return t, err
		},
		Values: func(t Timesheet) []any {
			return []any{t.ID, t.TenantID, t.UserID, t.Date, t.StartTime, t.EndTime,
				t.BreakMinutes, t.Description, string(t.Status), t.CreatedAt, t.UpdatedAt}
		},
	}
}

// NewTable binds the timesheets mapping to q.
func NewTable(q db.Querier) db.Table[Timesheet] {
	return db.NewTable(q, Mapping())
}
