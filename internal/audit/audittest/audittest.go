// Package audittest provides an in-memory audit table for tests of packages
// that read or write log-backed entities.
package audittest

import (
	"encoding/json"
	"time"

	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/platform/db/dbtest"
)

// Schema describes audit.Entry for dbtest.MemTable.
func Schema() dbtest.Schema[audit.Entry] {
	return dbtest.Schema[audit.Entry]{
		ID: func(e audit.Entry) string { return e.ID },
		Field: func(e audit.Entry, column string) any {
			switch column {
			case "id":
				return e.ID
			case "tenant_id":
				return deref(e.TenantID)
			case "user_id":
				return e.UserID
			case "action":
				return e.Action
			case "resource":
				return e.Resource
			case "resource_id":
				return deref(e.ResourceID)
			case "new_values":
				return e.NewValues
			case "old_values":
				return e.OldValues
			case "created_at":
				return e.CreatedAt
			}
			return nil
		},
		// audit rows are never updated
		Apply: func(e audit.Entry, _ db.Patch) audit.Entry { return e },
	}
}

// NewTable returns an empty in-memory audit table seeded with rows.
func NewTable(rows ...audit.Entry) *dbtest.MemTable[audit.Entry] {
	return dbtest.New(Schema(), rows...)
}

// Row builds a stored entry for seeding. newValues is marshalled to JSON.
func Row(id, tenantID, userID, action string, at time.Time, newValues any) audit.Entry {
	raw, err := json.Marshal(newValues)
	if err != nil {
		panic(err)
	}
	e := audit.Entry{
		ID:        id,
		UserID:    userID,
		Action:    action,
		Resource:  "leave",
		NewValues: raw,
		CreatedAt: at,
	}
	if tenantID != "" {
		e.TenantID = &tenantID
	}
	return e
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
