package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Credential, error)
	// DefaultTenant returns the tenant of the user's oldest active
	// membership, or shared.ErrNotFound.
	DefaultTenant(ctx context.Context, userID string) (string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{db: q}
}

// FindByEmail fetches a credential by case-insensitive email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Credential, error) {
	var c Credential
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, is_active, is_superuser
		FROM users WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.IsActive, &c.IsSuperuser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, shared.ErrNotFound
		}
		return Credential{}, fmt.Errorf("auth: find by email: %w", err)
	}
	return c, nil
}

// DefaultTenant implements Repository.
func (r *PGRepository) DefaultTenant(ctx context.Context, userID string) (string, error) {
	var tenantID string
	err := r.db.QueryRow(ctx, `
		SELECT tenant_id FROM memberships
		WHERE user_id = $1 AND active
		ORDER BY created_at, tenant_id
		LIMIT 1`, userID,
	).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("auth: default tenant: %w", err)
	}
	return tenantID, nil
}

var _ Repository = (*PGRepository)(nil)
