package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/workforce-hq/workforce/internal/auth"
	"github.com/workforce-hq/workforce/internal/observability"
	"github.com/workforce-hq/workforce/internal/platform/httpx"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Tokens         *auth.Tokens
	Resolver       *tenancy.Resolver
	Metrics        *observability.Metrics
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	logger        *slog.Logger
	ctx           context.Context
	headerWritten bool
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("failed to commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func sessionMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			if err != nil {
				cfg.Logger.Error("failed to load session", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)
			wrapped := &responseWriterWithCommit{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				logger:         cfg.Logger,
				ctx:            ctx,
			}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
			if !wrapped.headerWritten {
				wrapped.WriteHeader(http.StatusOK)
			}
		})
	}
}

// identify reads the caller identity from a bearer token, falling back to
// the cookie session. A present but invalid token is an error.
func identify(cfg MiddlewareConfig, r *http.Request) (tenancy.Identity, bool, error) {
	if raw, ok := auth.BearerToken(r); ok {
		if cfg.Tokens == nil {
			return tenancy.Identity{}, false, shared.ErrAuthenticationRequired
		}
		identity, err := cfg.Tokens.Parse(raw)
		if err != nil {
			cfg.Logger.Debug("bearer token rejected", slog.Any("error", err))
			return tenancy.Identity{}, false, shared.ErrAuthenticationRequired
		}
		return identity, true, nil
	}
	identity, ok := auth.IdentityFromSession(shared.SessionFromContext(r.Context()))
	return identity, ok, nil
}

// actorMiddleware resolves the acting context for every request. Requests
// that cannot be granted a context pass through without one; handlers then
// answer 401 through the guard.
func actorMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	header := "X-Tenant-ID"
	if cfg.Config != nil && cfg.Config.TenantHeader != "" {
		header = cfg.Config.TenantHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok, err := identify(cfg, r)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			if !ok || cfg.Resolver == nil {
				next.ServeHTTP(w, r)
				return
			}
			actx, granted, err := cfg.Resolver.Resolve(r.Context(), identity, r.Header.Get(header))
			if err != nil {
				cfg.Logger.Error("resolve acting context", slog.Any("error", err), slog.String("user_id", identity.UserID))
				httpx.RespondError(w, err)
				return
			}
			if !granted {
				cfg.Logger.Warn("acting context not granted",
					slog.String("user_id", identity.UserID),
					slog.String("tenant_id", identity.TenantID),
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithActor(r.Context(), actx)))
		})
	}
}

// csrfMiddleware protects mutations made with the session cookie. Bearer
// requests and anonymous sessions are not subject to it.
func csrfMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shared.RequiresToken(r.Method) || shared.SessionUserID(r.Context()) == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, bearer := auth.BearerToken(r); bearer {
				next.ServeHTTP(w, r)
				return
			}
			if err := cfg.CSRFManager.VerifyRequest(r, shared.SessionFromContext(r.Context())); err != nil {
				cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareStack installs the workforce middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.Config == nil || !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	perMinute := 120
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		perMinute = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(perMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	if cfg.SessionManager != nil {
		middlewares = append(middlewares, sessionMiddleware(cfg))
	}
	middlewares = append(middlewares, actorMiddleware(cfg))
	if cfg.CSRFManager != nil {
		middlewares = append(middlewares, csrfMiddleware(cfg))
	}
	return middlewares
}
