// Package tenancy resolves the acting identity, tenant and role of a request.
package tenancy

import (
	"context"

	"github.com/workforce-hq/workforce/internal/rbac"
)

// ActingContext is the resolved identity and scope of one request. It is
// passed by value and never persisted.
type ActingContext struct {
	TenantID    string
	UserID      string
	Role        rbac.Role
	IsSuperuser bool
}

// Global reports whether the context is a superuser without a selected tenant.
func (a ActingContext) Global() bool {
	return a.IsSuperuser && a.TenantID == ""
}

type actorContextKey struct{}

// WithActor stores the acting context in ctx.
func WithActor(ctx context.Context, actor ActingContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting context. The boolean is false when the
// request is unauthenticated or failed resolution.
func ActorFromContext(ctx context.Context) (ActingContext, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(ActingContext)
	return actor, ok
}
