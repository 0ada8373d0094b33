package scoped

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/platform/db/dbtest"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

type sheet struct {
	ID       string
	TenantID string
	UserID   string
	Status   string
}

func (s sheet) Scope() (string, string) { return s.TenantID, s.UserID }

func (s sheet) WithScope(tenantID, ownerID string) sheet {
	s.TenantID, s.UserID = tenantID, ownerID
	return s
}

var sheetKind = Kind{Name: "timesheet", TenantColumn: "tenant_id", OwnerColumn: "user_id"}

func newSheets() *dbtest.MemTable[sheet] {
	return dbtest.New(dbtest.Schema[sheet]{
		ID: func(s sheet) string { return s.ID },
		Field: func(s sheet, column string) any {
			switch column {
			case "id":
				return s.ID
			case "tenant_id":
				return s.TenantID
			case "user_id":
				return s.UserID
			case "status":
				return s.Status
			}
			return nil
		},
		Apply: func(s sheet, patch db.Patch) sheet {
			if v, ok := patch["status"].(string); ok {
				s.Status = v
			}
			return s
		},
	},
		sheet{ID: "a1", TenantID: "t1", UserID: "u1", Status: "PENDING"},
		sheet{ID: "a2", TenantID: "t1", UserID: "u2", Status: "PENDING"},
		sheet{ID: "b1", TenantID: "t2", UserID: "u3", Status: "PENDING"},
	)
}

func ids(rows []sheet) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	for _, role := range []rbac.Role{rbac.RoleUser, rbac.RoleManager, rbac.RoleTenantAdmin} {
		c := New[sheet](newSheets(), sheetKind, tenancy.ActingContext{TenantID: "t2", UserID: "u3", Role: role})
		rows, err := c.FindMany(ctx, db.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(rows), role)

		n, err := c.Count(ctx, db.Query{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = c.FindOne(ctx, "a1")
		assert.True(t, errors.Is(err, shared.ErrNotFound), role)
	}
}

func TestOwnershipNarrowing(t *testing.T) {
	ctx := context.Background()
	user := New[sheet](newSheets(), sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "u1", Role: rbac.RoleUser})
	rows, err := user.FindMany(ctx, db.Query{Where: []db.Cond{db.Eq("status", "PENDING")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids(rows))

	_, err = user.FindOne(ctx, "a2")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	manager := New[sheet](newSheets(), sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "u9", Role: rbac.RoleManager})
	rows, err = manager.FindMany(ctx, db.Query{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, ids(rows))
}

func TestCreateForcesScope(t *testing.T) {
	ctx := context.Background()
	table := newSheets()
	user := New[sheet](table, sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "u1", Role: rbac.RoleUser})

	created, err := user.Create(ctx, sheet{ID: "n1", TenantID: "t2", UserID: "u2", Status: "PENDING"})
	require.NoError(t, err)
	assert.Equal(t, "t1", created.TenantID)
	assert.Equal(t, "u1", created.UserID)

	manager := New[sheet](table, sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager})
	created, err = manager.Create(ctx, sheet{ID: "n2", UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "u2", created.UserID)
	created, err = manager.Create(ctx, sheet{ID: "n3"})
	require.NoError(t, err)
	assert.Equal(t, "m1", created.UserID)

	global := New[sheet](table, sheetKind, tenancy.ActingContext{UserID: "root", Role: rbac.RoleSuperuser, IsSuperuser: true})
	_, err = global.Create(ctx, sheet{ID: "n4"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateAndDeleteReverifyLoadedRow(t *testing.T) {
	ctx := context.Background()
	table := newSheets()
	foreign := New[sheet](table, sheetKind, tenancy.ActingContext{TenantID: "t2", UserID: "u3", Role: rbac.RoleTenantAdmin})

	_, err := foreign.Update(ctx, "a1", db.Patch{"status": "APPROVED"})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	err = foreign.Delete(ctx, "a1")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	row, ok := table.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "PENDING", row.Status)
}

func TestConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	table := newSheets()
	c := New[sheet](table, sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager})

	updated, err := c.Update(ctx, "a1", db.Patch{"status": "APPROVED"}, db.Eq("status", "PENDING"))
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", updated.Status)

	_, err = c.Update(ctx, "a1", db.Patch{"status": "REJECTED"}, db.Eq("status", "PENDING"))
	assert.ErrorIs(t, err, db.ErrNoRowsAffected)

	err = c.Delete(ctx, "a1", db.Eq("status", "PENDING"))
	assert.ErrorIs(t, err, db.ErrNoRowsAffected)

	_, err = c.Update(ctx, "a2", db.Patch{"tenant_id": "t2"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSuperuserViews(t *testing.T) {
	ctx := context.Background()
	global := New[sheet](newSheets(), sheetKind, tenancy.ActingContext{UserID: "root", Role: rbac.RoleSuperuser, IsSuperuser: true})
	rows, err := global.FindMany(ctx, db.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	selected := New[sheet](newSheets(), sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "root", Role: rbac.RoleSuperuser, IsSuperuser: true})
	rows, err = selected.FindMany(ctx, db.Query{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, ids(rows))
	_, err = selected.FindOne(ctx, "b1")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestEveryCallHitsTheStore(t *testing.T) {
	ctx := context.Background()
	table := newSheets()
	c := New[sheet](table, sheetKind, tenancy.ActingContext{TenantID: "t1", UserID: "u1", Role: rbac.RoleUser})
	_, _ = c.FindMany(ctx, db.Query{})
	_, _ = c.FindMany(ctx, db.Query{})
	_, _ = c.Count(ctx, db.Query{Limit: 5, Offset: 10})
	require.Len(t, table.Queries, 3)
	assert.Zero(t, table.Queries[2].Limit)
	assert.Contains(t, table.Queries[0].Where, db.Eq("tenant_id", "t1"))
	assert.Contains(t, table.Queries[0].Where, db.Eq("user_id", "u1"))
}
