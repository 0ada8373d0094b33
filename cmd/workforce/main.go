package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/app"
	"github.com/workforce-hq/workforce/internal/approvals"
	"github.com/workforce-hq/workforce/internal/audit"
	audithttp "github.com/workforce-hq/workforce/internal/audit/http"
	"github.com/workforce-hq/workforce/internal/auth"
	"github.com/workforce-hq/workforce/internal/leave"
	"github.com/workforce-hq/workforce/internal/observability"
	"github.com/workforce-hq/workforce/internal/platform/cache"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
	"github.com/workforce-hq/workforce/internal/timesheets"
	"github.com/workforce-hq/workforce/internal/users"
	"github.com/workforce-hq/workforce/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: 5 * time.Minute})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	directory := users.NewDirectory(dbpool)
	resolver := tenancy.NewResolver(directory, logger)

	timesheetTable := timesheets.NewTable(dbpool)
	guard := access.NewGuard(rbac.Default(), access.TableLocator[timesheets.Timesheet](timesheetTable), directory)
	rbacMiddleware := access.Middleware{Guard: guard, Logger: logger}

	auditStore := audit.NewStore(audit.NewTable(dbpool), logger, metrics)
	dispatcher := audit.NewDispatcher(auditStore, cfg.AuditBuffer, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			logger.Warn("audit dispatcher close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(dbpool), resolver, dispatcher, logger)
	authHandler := auth.NewHandler(logger, authService, tokens, sessionManager, csrfManager)

	timesheetService := timesheets.NewService(timesheetTable, guard, dispatcher, logger)
	timesheetHandler := timesheets.NewHandler(timesheetService, logger)

	leaveService := leave.NewService(leave.NewStore(dbpool, auditStore), guard, directory, logger)
	leaveHandler := leave.NewHandler(leaveService, logger)

	approvalService := approvals.NewService(guard, timesheetService, auditStore, directory, logger)
	approvalHandler := approvals.NewHandler(approvalService, logger)

	usersService := users.NewService(
		guard,
		db.NewTable(dbpool, users.TenantMapping()),
		db.NewTable(dbpool, users.MemberMapping()),
		cfg.Locale(),
		logger,
	)
	usersHandler := users.NewHandler(logger, usersService)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewTable(dbpool)), guard)
	permissionsHandler := access.NewPermissionsHandler(guard, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Tokens:             tokens,
		Resolver:           resolver,
		Metrics:            metrics,
		Health:             dbpool,
		AuthHandler:        authHandler,
		ApprovalsHandler:   approvalHandler,
		LeaveHandler:       leaveHandler,
		TimesheetsHandler:  timesheetHandler,
		UsersHandler:       usersHandler,
		AuditHandler:       auditHandler,
		PermissionsHandler: permissionsHandler,
		JobsHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
