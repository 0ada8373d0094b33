package timesheets

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Handler exposes timesheet endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: httpx.NewValidator(), logger: logger}
}

// MountRoutes registers timesheet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/", h.put)
	r.Patch("/{id}", h.patch)
	r.Delete("/{id}", h.delete)
}

type timesheetResponse struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	UserID       string     `json:"userId"`
	Date         string     `json:"date"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	BreakMinutes int        `json:"breakMinutes"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Hours        string     `json:"hours"`
}

func toResponse(t Timesheet) timesheetResponse {
	return timesheetResponse{
		ID:           t.ID,
		TenantID:     t.TenantID,
		UserID:       t.UserID,
		Date:         t.Date.Format(dateLayout),
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		BreakMinutes: t.BreakMinutes,
		Description:  t.Description,
		Status:       t.Status,
		Hours:        t.WorkedHours().StringFixed(2),
	}
}

type listResponse struct {
	Items      []timesheetResponse `json:"items"`
	Pagination shared.Pagination   `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{UserID: strings.TrimSpace(q.Get("userId")), Page: page, Limit: limit}
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondError(w, shared.ValidationFailed(map[string]string{"status": "oneof"}))
			return
		}
		filter.Status = status
	}
	if filter.From, err = parseOptionalDate(q.Get("from")); err != nil {
		httpx.RespondError(w, shared.ValidationFailed(map[string]string{"from": "datetime"}))
		return
	}
	if filter.To, err = parseOptionalDate(q.Get("to")); err != nil {
		httpx.RespondError(w, shared.ValidationFailed(map[string]string{"to": "datetime"}))
		return
	}

	rows, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list timesheets", err)
		return
	}
	items := make([]timesheetResponse, 0, len(rows))
	for _, t := range rows {
		items = append(items, toResponse(t))
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: pagination})
}

type createRequest struct {
	UserID       string     `json:"userId" validate:"omitempty,max=64"`
	Date         string     `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    time.Time  `json:"startTime" validate:"required"`
	EndTime      *time.Time `json:"endTime"`
	BreakMinutes int        `json:"breakMinutes" validate:"min=0,max=720"`
	Description  string     `json:"description" validate:"max=500"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.Parse(dateLayout, req.Date)
	created, err := h.service.Create(r.Context(), CreateInput{
		UserID:       req.UserID,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		BreakMinutes: req.BreakMinutes,
		Description:  req.Description,
		IPAddress:    httpx.ClientIP(r),
	})
	if err != nil {
		h.fail(w, "create timesheet", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

type updateRequest struct {
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	BreakMinutes *int       `json:"breakMinutes" validate:"omitempty,min=0,max=720"`
	Description  *string    `json:"description" validate:"omitempty,max=500"`
}

type putRequest struct {
	ID string `json:"id" validate:"required"`
	updateRequest
}

// put clocks out (body names only the id) or edits the timesheet named in the body.
func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.update(w, r, req.ID, req.updateRequest, true)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.update(w, r, chi.URLParam(r, "id"), req, false)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id string, req updateRequest, clockOut bool) {
	updated, err := h.service.Update(r.Context(), id, UpdateInput{
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		BreakMinutes: req.BreakMinutes,
		Description:  req.Description,
		ClockOut:     clockOut,
		IPAddress:    httpx.ClientIP(r),
	})
	if err != nil {
		h.fail(w, "update timesheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), httpx.ClientIP(r)); err != nil {
		h.fail(w, "delete timesheet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, raw)
}
