package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/approvals"
	audithttp "github.com/workforce-hq/workforce/internal/audit/http"
	"github.com/workforce-hq/workforce/internal/auth"
	"github.com/workforce-hq/workforce/internal/leave"
	"github.com/workforce-hq/workforce/internal/observability"
	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
	"github.com/workforce-hq/workforce/internal/timesheets"
	"github.com/workforce-hq/workforce/internal/users"
	"github.com/workforce-hq/workforce/jobs"
)

// Pinger reports backend health; *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Tokens         *auth.Tokens
	Resolver       *tenancy.Resolver
	Metrics        *observability.Metrics
	Health         Pinger

	AuthHandler        *auth.Handler
	ApprovalsHandler   *approvals.Handler
	LeaveHandler       *leave.Handler
	TimesheetsHandler  *timesheets.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audithttp.Handler
	PermissionsHandler *access.PermissionsHandler
	JobsHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with workforce defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Tokens:         params.Tokens,
		Resolver:       params.Resolver,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, shared.NotFound("route"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Health.Ping(ctx); err != nil {
				params.Logger.Error("health check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		loginLimit := 10
		if params.Config != nil && params.Config.LoginPerMinute > 0 {
			loginLimit = params.Config.LoginPerMinute
		}
		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.LimitByIP(loginLimit, time.Minute))
			params.AuthHandler.MountRoutes(r)
		})
	}
	if params.ApprovalsHandler != nil {
		r.Route("/approvals", params.ApprovalsHandler.MountRoutes)
	}
	if params.LeaveHandler != nil {
		r.Route("/vacations", params.LeaveHandler.MountVacationRoutes)
		r.Route("/sick-leaves", params.LeaveHandler.MountSickLeaveRoutes)
	}
	if params.TimesheetsHandler != nil {
		r.Route("/timesheets", params.TimesheetsHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/tenants", params.UsersHandler.MountTenantRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
