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
	"github.com/redis/go-redis/v9"

	"github.com/staffhub-hr/staffhub/internal/app"
	"github.com/staffhub-hr/staffhub/internal/audit"
	"github.com/staffhub-hr/staffhub/internal/auth"
	"github.com/staffhub-hr/staffhub/internal/bootstrap"
	"github.com/staffhub-hr/staffhub/internal/observability"
	"github.com/staffhub-hr/staffhub/internal/platform/cache"
	"github.com/staffhub-hr/staffhub/internal/platform/db"
	"github.com/staffhub-hr/staffhub/internal/rbac"
	"github.com/staffhub-hr/staffhub/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Login throttling fails open, so an unreachable Redis only
		// degrades the service instead of blocking startup.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditRepo := audit.NewPGRepository(dbpool)
	auditService := audit.NewService(auditRepo, logger)
	auditHandler := audit.NewHandler(logger, auditService)

	rbacRepo := rbac.NewPGRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, auditService, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService)
	enforcer := rbac.NewEnforcer(metrics)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, cfg.ImpersonationTTL)
	lockout := auth.NewLockout(redisClient, logger, cfg.LockoutThreshold, cfg.LockoutWindow, cfg.LockoutCooldown)
	authRepo := auth.NewPGRepository(dbpool)
	authService := auth.NewService(authRepo, tokens, rbacService, auditService, lockout, logger)
	authHandler := auth.NewHandler(logger, authService, metrics)
	authenticator := auth.NewAuthenticator(tokens, authRepo, rbacService, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(logger, jobsClient)

	if err := bootstrap.Seed(ctx, authRepo, rbacRepo, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Error("seed rbac catalog", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Authenticator: authenticator,
		AuthHandler:   authHandler,
		RBACHandler:   rbacHandler,
		AuditHandler:  auditHandler,
		Enforcer:      enforcer,
		Pool:          dbpool,
		Metrics:       metrics,
		JobsHandler:   jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
