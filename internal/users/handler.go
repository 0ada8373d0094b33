package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Handler exposes /users and /tenants.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listMembers)
	r.Get("/{id}", h.getMember)
}

// MountTenantRoutes registers tenant routes.
func (h *Handler) MountTenantRoutes(r chi.Router) {
	r.Get("/", h.listTenants)
}

type memberList struct {
	Items      []Member          `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := MemberFilter{Page: page, Limit: limit}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil || !role.TenantScoped() {
			httpx.RespondError(w, shared.ValidationFailed(map[string]string{"role": "oneof"}))
			return
		}
		filter.Role = role
	}
	if raw := strings.TrimSpace(q.Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, shared.ValidationFailed(map[string]string{"active": "boolean"}))
			return
		}
		filter.Active = &active
	}
	items, pagination, err := h.service.ListMembers(r.Context(), filter)
	if err != nil {
		h.fail(w, "list members", err)
		return
	}
	if items == nil {
		items = []Member{}
	}
	httpx.JSON(w, http.StatusOK, memberList{Items: items, Pagination: pagination})
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.fail(w, "list tenants", err)
		return
	}
	if tenants == nil {
		tenants = []Tenant{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": tenants})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
