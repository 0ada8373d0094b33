package approvals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Handler exposes /approvals.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler builds the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: httpx.NewValidator(), logger: logger}
}

// MountRoutes registers the queue endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.decide)
}

type decideRequest struct {
	IDs     []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
	Action  string   `json:"action" validate:"required,oneof=approve reject"`
	Comment string   `json:"comment" validate:"max=1000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query().Get("type"))
	if err != nil {
		httpx.RespondError(w, shared.ValidationFailed(map[string]string{"type": "oneof"}))
		return
	}
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), ListInput{
		Type:   filter,
		Status: r.URL.Query().Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, "list approvals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Decide(r.Context(), DecideInput{
		IDs:       req.IDs,
		Action:    Action(req.Action),
		Comment:   req.Comment,
		IPAddress: httpx.ClientIP(r),
	})
	if err != nil {
		h.fail(w, "decide approvals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
