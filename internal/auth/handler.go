package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *Tokens
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *Tokens, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		tokens:         tokens,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/token", h.handleToken)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	TenantID string `json:"tenantId" validate:"omitempty,max=64"`
}

type loginResponse struct {
	UserID      string    `json:"userId"`
	TenantID    string    `json:"tenantId,omitempty"`
	Role        rbac.Role `json:"role"`
	IsSuperuser bool      `json:"isSuperuser"`
	CSRFToken   string    `json:"csrfToken,omitempty"`
}

func (h *Handler) decode(r *http.Request) (LoginInput, error) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return LoginInput{}, err
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		return LoginInput{}, err
	}
	return LoginInput{Email: req.Email, Password: req.Password, TenantID: req.TenantID, IPAddress: httpx.ClientIP(r)}, nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}
	in, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	identity, actx, err := h.service.Authenticate(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.sessionManager.Renew(sess)
	StoreIdentity(sess, identity)
	sess.Delete(shared.CSRFSessionKey)
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		UserID:      actx.UserID,
		TenantID:    actx.TenantID,
		Role:        actx.Role,
		IsSuperuser: actx.IsSuperuser,
		CSRFToken:   csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	in, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	identity, _, err := h.service.Authenticate(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	token, err := h.tokens.Issue(identity)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error("auth failure", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
