package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatrixIsTotal(t *testing.T) {
	engine := Default()
	for _, role := range []Role{RoleUser, RoleManager, RoleTenantAdmin, RoleSuperuser} {
		assert.NotEmpty(t, engine.Permissions(role), "role %s has no permissions", role)
	}
	assert.Empty(t, engine.Permissions(Role("GUEST")))
}

func TestApprovalGate(t *testing.T) {
	assert.False(t, HasPermission(RoleUser, PermTimesheetApprove))
	assert.True(t, HasPermission(RoleManager, PermTimesheetApprove))
	assert.True(t, HasPermission(RoleTenantAdmin, PermTimesheetApprove))
	assert.True(t, HasPermission(RoleSuperuser, PermTimesheetApprove))
}

func TestSuperuserHoldsEveryPermission(t *testing.T) {
	for _, p := range AllPermissions() {
		assert.True(t, HasPermission(RoleSuperuser, p), p)
	}
}

func TestCustomMatrixIsIsolated(t *testing.T) {
	engine := NewEngine(Matrix{RoleUser: {PermTimesheetApprove}})
	assert.True(t, engine.HasPermission(RoleUser, PermTimesheetApprove))
	assert.False(t, engine.HasPermission(RoleManager, PermTimesheetApprove))
	assert.False(t, HasPermission(RoleUser, PermTimesheetApprove))

	var nilEngine *Engine
	assert.False(t, nilEngine.HasPermission(RoleSuperuser, PermTimesheetView))
}

func TestManageHierarchyIsMonotonic(t *testing.T) {
	roles := []Role{RoleUser, RoleManager, RoleTenantAdmin}
	for _, target := range roles {
		if RoleUser.CanManage(target) {
			assert.True(t, RoleManager.CanManage(target))
		}
		if RoleManager.CanManage(target) {
			assert.True(t, RoleTenantAdmin.CanManage(target))
		}
	}
	assert.True(t, RoleManager.CanManage(RoleUser))
	assert.False(t, RoleManager.CanManage(RoleManager))
	assert.False(t, RoleManager.CanManage(RoleTenantAdmin))
	assert.True(t, RoleTenantAdmin.CanManage(RoleTenantAdmin))
	assert.False(t, RoleUser.CanManage(RoleUser))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" manager ")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, role)

	_, err = ParseRole("owner")
	assert.Error(t, err)
	assert.True(t, RoleTenantAdmin.AtLeast(RoleManager))
	assert.False(t, RoleUser.AtLeast(RoleManager))
	assert.False(t, RoleSuperuser.TenantScoped())
}
