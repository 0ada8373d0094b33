package leave

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

// IdempotencyHeader names the optional replay protection header.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes /vacations and /sick-leaves.
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

// MountVacationRoutes registers /vacations.
func (h *Handler) MountVacationRoutes(r chi.Router) {
	r.Get("/", h.listVacations)
	r.Post("/", h.createVacation)
}

// MountSickLeaveRoutes registers /sick-leaves.
func (h *Handler) MountSickLeaveRoutes(r chi.Router) {
	r.Get("/", h.listSickLeaves)
	r.Post("/", h.createSickLeave)
}

type vacationRequest struct {
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=1000"`
	Type        string `json:"type" validate:"required,oneof=vacation tijd-voor-tijd"`
}

type sickLeaveRequest struct {
	StartDate          string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate            *string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Reason             string  `json:"reason" validate:"required,max=1000"`
	MedicalNote        string  `json:"medicalNote" validate:"max=2000"`
	UWVReported        bool    `json:"uwvReported"`
	ExpectedReturnDate *string `json:"expectedReturnDate" validate:"omitempty,datetime=2006-01-02"`
}

type listResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) createVacation(w http.ResponseWriter, r *http.Request) {
	var req vacationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	created, err := h.service.RequestVacation(r.Context(), VacationInput{
		StartDate:   start,
		EndDate:     end,
		Description: req.Description,
		Type:        req.Type,
	}, h.meta(r))
	if err != nil {
		h.fail(w, "request vacation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) createSickLeave(w http.ResponseWriter, r *http.Request) {
	var req sickLeaveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	created, err := h.service.RequestSickLeave(r.Context(), SickLeaveInput{
		StartDate:          start,
		EndDate:            parseOptional(req.EndDate),
		Reason:             req.Reason,
		MedicalNote:        req.MedicalNote,
		UWVReported:        req.UWVReported,
		ExpectedReturnDate: parseOptional(req.ExpectedReturnDate),
	}, h.meta(r))
	if err != nil {
		h.fail(w, "request sick leave", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listVacations(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.ListVacations(r.Context(), filter)
	if err != nil {
		h.fail(w, "list vacations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Vacation]{Items: items, Pagination: page})
}

func (h *Handler) listSickLeaves(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.ListSickLeaves(r.Context(), filter)
	if err != nil {
		h.fail(w, "list sick leaves", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[SickLeave]{Items: items, Pagination: page})
}

func (h *Handler) meta(r *http.Request) Meta {
	return Meta{
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
		IPAddress:      httpx.ClientIP(r),
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func listFilter(r *http.Request) (ListFilter, error) {
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		return ListFilter{}, err
	}
	return ListFilter{Status: strings.TrimSpace(r.URL.Query().Get("status")), Page: page, Limit: limit}, nil
}

func parseOptional(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil
	}
	return &t
}
