// Package access decides whether the acting context may touch a permission
// or resource. Handlers call it before reaching storage.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/scoped"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// ResourceKind names a guarded resource type.
type ResourceKind string

const (
	ResourceTimesheet ResourceKind = "timesheet"
	ResourceUser      ResourceKind = "user"
	ResourceTenant    ResourceKind = "tenant"
)

// Locator returns the tenant and owner of a row, ignoring acting scope.
// Missing rows yield shared.ErrNotFound.
type Locator interface {
	Locate(ctx context.Context, id string) (tenantID, ownerID string, err error)
}

// MembershipReader loads tenant memberships.
type MembershipReader interface {
	Membership(ctx context.Context, tenantID, userID string) (tenancy.Membership, error)
}

// Guard implements the three access contracts.
type Guard struct {
	engine     *rbac.Engine
	timesheets Locator
	members    MembershipReader
}

// NewGuard builds a guard. A nil engine falls back to the default matrix.
func NewGuard(engine *rbac.Engine, timesheets Locator, members MembershipReader) *Guard {
	if engine == nil {
		engine = rbac.Default()
	}
	return &Guard{engine: engine, timesheets: timesheets, members: members}
}

// Engine exposes the permission engine the guard consults.
func (g *Guard) Engine() *rbac.Engine {
	return g.engine
}

// RequireTenantAccess allows a global superuser for any tenant and everyone
// else, superusers with a selected tenant included, for their own tenant only.
func (g *Guard) RequireTenantAccess(ctx context.Context, tenantID string) (tenancy.ActingContext, error) {
	actx, ok := tenancy.ActorFromContext(ctx)
	if !ok {
		return tenancy.ActingContext{}, shared.ErrAuthenticationRequired
	}
	if actx.Global() {
		return actx, nil
	}
	if actx.TenantID == "" || actx.TenantID != tenantID {
		return actx, shared.AccessDenied("tenant mismatch")
	}
	return actx, nil
}

// RequirePermission checks the acting role against the engine. Superusers
// satisfy every permission.
func (g *Guard) RequirePermission(ctx context.Context, permission rbac.Permission) (tenancy.ActingContext, error) {
	actx, ok := tenancy.ActorFromContext(ctx)
	if !ok {
		return tenancy.ActingContext{}, shared.ErrAuthenticationRequired
	}
	if actx.IsSuperuser {
		return actx, nil
	}
	if !g.engine.HasPermission(actx.Role, permission) {
		return actx, shared.PermissionDenied(string(permission))
	}
	return actx, nil
}

// RequireResourceAccess checks permission, then tenant, ownership and role
// dominance for the given resource. A superuser with a selected tenant is
// checked as that tenant's TENANT_ADMIN.
func (g *Guard) RequireResourceAccess(ctx context.Context, kind ResourceKind, id string, permission rbac.Permission) (tenancy.ActingContext, error) {
	actx, err := g.RequirePermission(ctx, permission)
	if err != nil {
		return actx, err
	}
	if actx.Global() {
		return actx, nil
	}

	switch kind {
	case ResourceTimesheet:
		return actx, g.timesheetAccess(ctx, actx, id)
	case ResourceUser:
		return actx, g.userAccess(ctx, actx, id)
	case ResourceTenant:
		return g.RequireTenantAccess(ctx, id)
	default:
		return actx, fmt.Errorf("access: unknown resource kind %q", kind)
	}
}

func (g *Guard) timesheetAccess(ctx context.Context, actx tenancy.ActingContext, id string) error {
	tenantID, ownerID, err := g.timesheets.Locate(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound(string(ResourceTimesheet))
		}
		return fmt.Errorf("access: locate timesheet: %w", err)
	}
	if tenantID != actx.TenantID {
		return shared.AccessDenied("tenant mismatch")
	}
	if tenantRole(actx) == rbac.RoleUser && ownerID != actx.UserID {
		return shared.AccessDenied("not the owner")
	}
	return nil
}

func (g *Guard) userAccess(ctx context.Context, actx tenancy.ActingContext, targetID string) error {
	if targetID == actx.UserID {
		return nil
	}
	target, err := g.members.Membership(ctx, actx.TenantID, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.AccessDenied("user is not a member of this tenant")
		}
		return fmt.Errorf("access: load membership: %w", err)
	}
	if !target.Active {
		return shared.AccessDenied("user is not a member of this tenant")
	}
	if !tenantRole(actx).CanManage(target.Role) {
		return shared.AccessDenied("insufficient role")
	}
	return nil
}

func tenantRole(actx tenancy.ActingContext) rbac.Role {
	if actx.IsSuperuser {
		return rbac.RoleTenantAdmin
	}
	return actx.Role
}

type tableLocator[T scoped.Record[T]] struct {
	table db.Table[T]
}

// TableLocator adapts an unscoped table to Locator.
func TableLocator[T scoped.Record[T]](table db.Table[T]) Locator {
	return tableLocator[T]{table: table}
}

func (l tableLocator[T]) Locate(ctx context.Context, id string) (string, string, error) {
	row, err := l.table.FindOne(ctx, id)
	if err != nil {
		return "", "", err
	}
	tenantID, ownerID := row.Scope()
	return tenantID, ownerID, nil
}
