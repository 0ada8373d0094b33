package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// ContextResolver is satisfied by *tenancy.Resolver.
type ContextResolver interface {
	Resolve(ctx context.Context, identity tenancy.Identity, selectedTenant string) (tenancy.ActingContext, bool, error)
}

// Recorder receives best-effort audit events.
type Recorder interface {
	Append(ctx context.Context, actx tenancy.ActingContext, ev audit.Event)
}

// compared against when the email is unknown so both paths cost one bcrypt
// comparison
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("workforce-dummy-password"), bcrypt.MinCost)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	resolver ContextResolver
	audit    Recorder
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, resolver ContextResolver, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, audit: recorder, logger: logger}
}

// LoginInput carries credentials and an optional tenant choice.
type LoginInput struct {
	Email     string
	Password  string
	TenantID  string
	IPAddress string
}

// Authenticate validates credentials and returns the identity to store. A
// regular user signs into TenantID, or their oldest active membership when
// empty. Superusers sign in without a tenant and select one per request.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (tenancy.Identity, tenancy.ActingContext, error) {
	cred, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return tenancy.Identity{}, tenancy.ActingContext{}, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		return tenancy.Identity{}, tenancy.ActingContext{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(in.Password)); err != nil {
		return tenancy.Identity{}, tenancy.ActingContext{}, shared.ErrInvalidCredentials
	}
	if !cred.IsActive {
		return tenancy.Identity{}, tenancy.ActingContext{}, shared.ErrInvalidCredentials
	}

	identity := tenancy.Identity{UserID: cred.UserID, IsSuperuser: cred.IsSuperuser}
	if !cred.IsSuperuser {
		identity.TenantID = strings.TrimSpace(in.TenantID)
		if identity.TenantID == "" {
			identity.TenantID, err = s.repo.DefaultTenant(ctx, cred.UserID)
			if errors.Is(err, shared.ErrNotFound) {
				return tenancy.Identity{}, tenancy.ActingContext{}, shared.ErrInvalidCredentials
			}
			if err != nil {
				return tenancy.Identity{}, tenancy.ActingContext{}, err
			}
		}
	}

	actx, ok, err := s.resolver.Resolve(ctx, identity, "")
	if err != nil {
		return tenancy.Identity{}, tenancy.ActingContext{}, fmt.Errorf("auth: resolve: %w", err)
	}
	if !ok {
		s.logger.Warn("login without usable membership", slog.String("user_id", cred.UserID), slog.String("tenant_id", identity.TenantID))
		return tenancy.Identity{}, tenancy.ActingContext{}, shared.ErrInvalidCredentials
	}
	if s.audit != nil {
		s.audit.Append(ctx, actx, audit.Event{
			Action:     audit.ActionLogin,
			Resource:   "session",
			ResourceID: cred.UserID,
			IPAddress:  in.IPAddress,
		})
	}
	return identity, actx, nil
}
