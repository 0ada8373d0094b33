package rbac

import "sort"

// Matrix maps a role to the permissions it holds.
type Matrix map[Role][]Permission

// DefaultMatrix returns the production capability matrix.
func DefaultMatrix() Matrix {
	employee := []Permission{
		PermTimesheetView,
		PermTimesheetCreate,
		PermTimesheetEdit,
		PermTimesheetDelete,
		PermLeaveView,
		PermLeaveRequest,
		PermUsersView,
		PermTenantsView,
		PermPermissionsView,
	}
	manager := append(append([]Permission{}, employee...),
		PermTimesheetApprove,
		PermAuditView,
	)
	admin := append(append([]Permission{}, manager...),
		PermUsersManage,
		PermBilling,
		PermAuditExport,
	)
	return Matrix{
		RoleUser:        employee,
		RoleManager:     manager,
		RoleTenantAdmin: admin,
		RoleSuperuser:   AllPermissions(),
	}
}

// Engine answers permission questions from a fixed matrix. It performs no I/O.
type Engine struct {
	sets map[Role]map[Permission]struct{}
}

// NewEngine constructs an Engine from the given matrix.
func NewEngine(m Matrix) *Engine {
	sets := make(map[Role]map[Permission]struct{}, len(m))
	for role, perms := range m {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[role] = set
	}
	return &Engine{sets: sets}
}

var defaultEngine = NewEngine(DefaultMatrix())

// Default returns the engine built from DefaultMatrix.
func Default() *Engine {
	return defaultEngine
}

// HasPermission reports whether permission is in the set for role.
func (e *Engine) HasPermission(role Role, permission Permission) bool {
	if e == nil {
		return false
	}
	_, ok := e.sets[role][permission]
	return ok
}

// Permissions returns the sorted permission set for role.
func (e *Engine) Permissions(role Role) []Permission {
	if e == nil {
		return nil
	}
	set := e.sets[role]
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// HasPermission checks the default matrix.
func HasPermission(role Role, permission Permission) bool {
	return defaultEngine.HasPermission(role, permission)
}
