package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// TenantMapping maps the tenants table.
func TenantMapping() db.Mapping[Tenant] {
	return db.Mapping[Tenant]{
		Table:   "tenants",
		Columns: []string{"id", "name", "slug", "created_at"},
		Scan: func(row pgx.Row) (Tenant, error) {
			var t Tenant
			err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
			return t, err
		},
		Values: func(t Tenant) []any {
			return []any{t.ID, t.Name, t.Slug, t.CreatedAt}
		},
	}
}

// MemberMapping maps the tenant_members view. The view is read-only; Create
// and Update are never called on it.
func MemberMapping() db.Mapping[Member] {
	return db.Mapping[Member]{
		Table:   "tenant_members",
		Columns: []string{"id", "tenant_id", "user_id", "email", "name", "role", "active", "joined_at"},
		Scan: func(row pgx.Row) (Member, error) {
			var m Member
			var role string
			if err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Email, &m.Name, &role, &m.Active, &m.JoinedAt); err != nil {
				return Member{}, err
			}
			m.Role = rbac.Role(role)
			return m, nil
		},
		Values: func(m Member) []any {
			return []any{m.ID, m.TenantID, m.UserID, m.Email, m.Name, string(m.Role), m.Active, m.JoinedAt}
		},
	}
}

// Directory reads accounts and memberships straight from PostgreSQL. It
// implements tenancy.Directory and the name lookups used by leave and the
// approval queue.
type Directory struct {
	db db.Querier
}

// NewDirectory constructs a Directory.
func NewDirectory(q db.Querier) *Directory {
	return &Directory{db: q}
}

var _ tenancy.Directory = (*Directory)(nil)

// Account loads a platform account.
func (d *Directory) Account(ctx context.Context, userID string) (tenancy.Account, error) {
	var acc tenancy.Account
	err := d.db.QueryRow(ctx,
		`SELECT id, email, name, is_active, is_superuser FROM users WHERE id = $1`, userID,
	).Scan(&acc.ID, &acc.Email, &acc.Name, &acc.IsActive, &acc.IsSuperuser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenancy.Account{}, shared.NotFound("user")
		}
		return tenancy.Account{}, fmt.Errorf("users: load account: %w", err)
	}
	return acc, nil
}

// Membership loads the (tenant, user) membership. An inactive user account
// yields an inactive membership.
func (d *Directory) Membership(ctx context.Context, tenantID, userID string) (tenancy.Membership, error) {
	var (
		m    tenancy.Membership
		role string
	)
	err := d.db.QueryRow(ctx, `
		SELECT m.tenant_id, m.user_id, m.role, m.active AND u.is_active
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1 AND m.user_id = $2`, tenantID, userID,
	).Scan(&m.TenantID, &m.UserID, &role, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenancy.Membership{}, shared.NotFound("membership")
		}
		return tenancy.Membership{}, fmt.Errorf("users: load membership: %w", err)
	}
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		// unknown roles never grant anything
		m.Active = false
		return m, nil
	}
	m.Role = parsed
	return m, nil
}

// TenantExists reports whether tenantID names a tenant.
func (d *Directory) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	var exists bool
	if err := d.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("users: tenant exists: %w", err)
	}
	return exists, nil
}

// DisplayName returns the display name of one user.
func (d *Directory) DisplayName(ctx context.Context, userID string) (string, error) {
	acc, err := d.Account(ctx, userID)
	if err != nil {
		return "", err
	}
	return acc.Name, nil
}

// DisplayNames returns display names keyed by user id. Unknown ids are
// absent from the result.
func (d *Directory) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := d.db.Query(ctx, `SELECT id, name FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("users: display names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("users: scan display name: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}
