package rbac

import (
	"fmt"
	"strings"
)

// Role is a tenant scoped role, plus the tenant-unscoped SUPERUSER.
type Role string

const (
	RoleUser        Role = "USER"
	RoleManager     Role = "MANAGER"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleSuperuser   Role = "SUPERUSER"
)

var roleRank = map[Role]int{
	RoleUser:        1,
	RoleManager:     2,
	RoleTenantAdmin: 3,
	RoleSuperuser:   4,
}

// ParseRole normalises a stored role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// TenantScoped reports whether the role only exists inside a tenant membership.
func (r Role) TenantScoped() bool {
	return r.Valid() && r != RoleSuperuser
}

// CanManage reports whether an actor holding r may manage a member holding
// target. TENANT_ADMIN manages anyone in its tenant, MANAGER only USER members.
func (r Role) CanManage(target Role) bool {
	switch r {
	case RoleSuperuser:
		return true
	case RoleTenantAdmin:
		return target != RoleSuperuser
	case RoleManager:
		return target == RoleUser
	default:
		return false
	}
}

// AtLeast compares positions in the USER < MANAGER < TENANT_ADMIN < SUPERUSER order.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other] && r.Valid()
}

// Permission is an opaque capability label.
type Permission string

const (
	PermTimesheetView    Permission = "timesheet.view"
	PermTimesheetCreate  Permission = "timesheet.create"
	PermTimesheetEdit    Permission = "timesheet.edit"
	PermTimesheetDelete  Permission = "timesheet.delete"
	PermTimesheetApprove Permission = "timesheet.approve"

	PermLeaveView    Permission = "leave.view"
	PermLeaveRequest Permission = "leave.request"

	PermUsersView   Permission = "users.view"
	PermUsersManage Permission = "users.manage"

	PermTenantsView Permission = "tenants.view"
	PermBilling     Permission = "billing.manage"

	PermAuditView   Permission = "audit.view"
	PermAuditExport Permission = "audit.export"

	PermPermissionsView Permission = "permissions.view"
)

// AllPermissions lists every permission known to the platform.
func AllPermissions() []Permission {
	return []Permission{
		PermTimesheetView,
		PermTimesheetCreate,
		PermTimesheetEdit,
		PermTimesheetDelete,
		PermTimesheetApprove,
		PermLeaveView,
		PermLeaveRequest,
		PermUsersView,
		PermUsersManage,
		PermTenantsView,
		PermBilling,
		PermAuditView,
		PermAuditExport,
		PermPermissionsView,
	}
}
