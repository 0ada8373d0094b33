package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Identity is what the session or bearer token claims about the caller.
type Identity struct {
	UserID      string
	TenantID    string
	IsSuperuser bool
}

// Membership ties a user to a tenant with a tenant specific role.
type Membership struct {
	TenantID string
	UserID   string
	Role     rbac.Role
	Active   bool
}

// Account is the platform level user record.
type Account struct {
	ID          string
	Email       string
	Name        string
	IsActive    bool
	IsSuperuser bool
}

// Directory reads accounts, tenants and memberships. Implementations return
// shared.ErrNotFound for missing rows.
type Directory interface {
	Account(ctx context.Context, userID string) (Account, error)
	Membership(ctx context.Context, tenantID, userID string) (Membership, error)
	TenantExists(ctx context.Context, tenantID string) (bool, error)
}

// Resolver turns an Identity into an ActingContext. Every call re-reads the
// directory; nothing is cached between requests.
type Resolver struct {
	directory Directory
	logger    *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(directory Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{directory: directory, logger: logger}
}

// Resolve returns the acting context for identity. selectedTenant is only
// honoured for superusers. ok is false when no context can be granted; err is
// reserved for directory failures.
func (r *Resolver) Resolve(ctx context.Context, identity Identity, selectedTenant string) (ActingContext, bool, error) {
	userID := strings.TrimSpace(identity.UserID)
	if userID == "" {
		return ActingContext{}, false, nil
	}
	if identity.IsSuperuser {
		return r.resolveSuperuser(ctx, userID, strings.TrimSpace(selectedTenant))
	}

	tenantID := strings.TrimSpace(identity.TenantID)
	if tenantID == "" {
		return ActingContext{}, false, nil
	}
	membership, err := r.directory.Membership(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("tenant membership missing", slog.String("tenant_id", tenantID), slog.String("user_id", userID))
			return ActingContext{}, false, nil
		}
		return ActingContext{}, false, fmt.Errorf("tenancy: load membership: %w", err)
	}
	if !membership.Active || !membership.Role.TenantScoped() {
		r.logger.Warn("tenant membership inactive", slog.String("tenant_id", tenantID), slog.String("user_id", userID))
		return ActingContext{}, false, nil
	}
	return ActingContext{
		TenantID: tenantID,
		UserID:   userID,
		Role:     membership.Role,
	}, true, nil
}

func (r *Resolver) resolveSuperuser(ctx context.Context, userID, selectedTenant string) (ActingContext, bool, error) {
	account, err := r.directory.Account(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ActingContext{}, false, nil
		}
		return ActingContext{}, false, fmt.Errorf("tenancy: load account: %w", err)
	}
	if !account.IsActive || !account.IsSuperuser {
		r.logger.Warn("superuser claim rejected", slog.String("user_id", userID))
		return ActingContext{}, false, nil
	}
	if selectedTenant != "" {
		exists, err := r.directory.TenantExists(ctx, selectedTenant)
		if err != nil {
			return ActingContext{}, false, fmt.Errorf("tenancy: load tenant: %w", err)
		}
		if !exists {
			return ActingContext{}, false, nil
		}
	}
	return ActingContext{
		TenantID:    selectedTenant,
		UserID:      userID,
		Role:        rbac.RoleSuperuser,
		IsSuperuser: true,
	}, true, nil
}
