package access

import (
	"log/slog"
	"net/http"

	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// Middleware wires guard checks into chi route groups.
type Middleware struct {
	Guard  *Guard
	Logger *slog.Logger
}

// RequirePermission rejects requests whose acting context lacks permission.
func (m Middleware) RequirePermission(permission rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actx, err := m.Guard.RequirePermission(r.Context(), permission)
			if err != nil {
				if m.Logger != nil && shared.KindOf(err) == shared.KindPermissionDenied {
					m.Logger.Warn("permission denied",
						slog.String("permission", string(permission)),
						slog.String("user_id", actx.UserID),
						slog.String("tenant_id", actx.TenantID),
					)
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests without an acting context.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tenancy.ActorFromContext(r.Context()); !ok {
			httpx.RespondError(w, shared.ErrAuthenticationRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
