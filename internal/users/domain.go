// Package users exposes accounts, tenants and tenant memberships. It also
// backs the tenancy directory the resolver re-reads on every request.
package users

import (
	"time"

	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/scoped"
)

// Tenant is a customer organisation.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// Scope implements scoped.Record. A tenant row is its own tenant.
func (t Tenant) Scope() (string, string) {
	return t.ID, ""
}

// WithScope implements scoped.Record.
func (t Tenant) WithScope(tenantID, _ string) Tenant {
	t.ID = tenantID
	return t
}

// Member is a user as seen through one tenant membership.
type Member struct {
	ID       string    `json:"membershipId"`
	TenantID string    `json:"tenantId"`
	UserID   string    `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     rbac.Role `json:"role"`
	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Scope implements scoped.Record.
func (m Member) Scope() (string, string) {
	return m.TenantID, ""
}

// WithScope implements scoped.Record.
func (m Member) WithScope(tenantID, _ string) Member {
	m.TenantID = tenantID
	return m
}

var (
	tenantKind = scoped.Kind{Name: "tenant", TenantColumn: "id"}
	memberKind = scoped.Kind{Name: "user", TenantColumn: "tenant_id"}
)
