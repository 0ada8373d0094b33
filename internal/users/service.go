package users

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/scoped"
	"github.com/workforce-hq/workforce/internal/shared"
)

// MaxMembers bounds a member listing before it is sorted in memory.
const MaxMembers = 1000

// Service lists tenants and members through the scoped wrapper.
type Service struct {
	guard   *access.Guard
	tenants db.Table[Tenant]
	members db.Table[Member]
	locale  language.Tag
	logger  *slog.Logger
}

// NewService constructs the service. Names sort by the rules of locale.
func NewService(guard *access.Guard, tenants db.Table[Tenant], members db.Table[Member], locale language.Tag, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guard: guard, tenants: tenants, members: members, locale: locale, logger: logger}
}

// ListTenants returns every tenant for a global superuser and the acting
// tenant for everyone else.
func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermTenantsView)
	if err != nil {
		return nil, err
	}
	rows, err := scoped.New[Tenant](s.tenants, tenantKind, actx).FindMany(ctx, db.Query{
		OrderBy: []db.Order{{Column: "name"}, {Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("users: list tenants: %w", err)
	}
	return rows, nil
}

// MemberFilter narrows a member listing.
type MemberFilter struct {
	Role   rbac.Role
	Active *bool
	Page   int
	Limit  int
}

// ListMembers returns one page of members of the acting tenant ordered by
// name.
func (s *Service) ListMembers(ctx context.Context, f MemberFilter) ([]Member, shared.Pagination, error) {
	actx, err := s.guard.RequirePermission(ctx, rbac.PermUsersView)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	var where []db.Cond
	if f.Role != "" {
		where = append(where, db.Eq("role", string(f.Role)))
	}
	if f.Active != nil {
		where = append(where, db.Eq("active", *f.Active))
	}
	rows, err := scoped.New[Member](s.members, memberKind, actx).FindMany(ctx, db.Query{
		Where:   where,
		OrderBy: []db.Order{{Column: "name"}, {Column: "id"}},
		Limit:   MaxMembers,
	})
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("users: list members: %w", err)
	}
	s.sortByName(rows)

	page := shared.NewPagination(f.Page, f.Limit, len(rows))
	start := min(page.Offset(), len(rows))
	end := min(start+page.Limit, len(rows))
	return rows[start:end], page, nil
}

// GetMember returns userID as a member of the acting tenant. Members may
// always read themselves; reading others requires managing them.
func (s *Service) GetMember(ctx context.Context, userID string) (Member, error) {
	actx, err := s.guard.RequireResourceAccess(ctx, access.ResourceUser, userID, rbac.PermUsersView)
	if err != nil {
		return Member{}, err
	}
	rows, err := scoped.New[Member](s.members, memberKind, actx).FindMany(ctx, db.Query{
		Where:   []db.Cond{db.Eq("user_id", userID)},
		OrderBy: []db.Order{{Column: "tenant_id"}},
		Limit:   1,
	})
	if err != nil {
		return Member{}, fmt.Errorf("users: get member: %w", err)
	}
	if len(rows) == 0 {
		return Member{}, shared.NotFound(memberKind.Name)
	}
	return rows[0], nil
}

func (s *Service) sortByName(rows []Member) {
	c := collate.New(s.locale, collate.IgnoreCase)
	slices.SortStableFunc(rows, func(a, b Member) int {
		if n := c.CompareString(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.UserID, b.UserID)
	})
}
