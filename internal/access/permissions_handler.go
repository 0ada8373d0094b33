package access

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/rbac"
)

// PermissionsHandler reports the caller's effective permissions.
type PermissionsHandler struct {
	guard *Guard
	rbac  Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(guard *Guard, mw Middleware) *PermissionsHandler {
	return &PermissionsHandler{guard: guard, rbac: mw}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermPermissionsView))
		r.Get("/", h.listPermissions)
	})
}

type permissionsResponse struct {
	UserID      string            `json:"userId"`
	TenantID    string            `json:"tenantId,omitempty"`
	Role        rbac.Role         `json:"role"`
	Superuser   bool              `json:"isSuperuser"`
	Permissions []rbac.Permission `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	actx, err := h.guard.RequirePermission(r.Context(), rbac.PermPermissionsView)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms := h.guard.Engine().Permissions(actx.Role)
	if actx.IsSuperuser {
		perms = rbac.AllPermissions()
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		UserID:      actx.UserID,
		TenantID:    actx.TenantID,
		Role:        actx.Role,
		Superuser:   actx.IsSuperuser,
		Permissions: perms,
	})
}
