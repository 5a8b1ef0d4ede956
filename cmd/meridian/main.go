package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/app"
	"github.com/meridian-iam/meridian-iam/internal/auth"
	"github.com/meridian-iam/meridian-iam/internal/features"
	"github.com/meridian-iam/meridian-iam/internal/observability"
	"github.com/meridian-iam/meridian-iam/internal/pages"
	"github.com/meridian-iam/meridian-iam/internal/permissions"
	"github.com/meridian-iam/meridian-iam/internal/platform/cache"
	"github.com/meridian-iam/meridian-iam/internal/platform/db"
	"github.com/meridian-iam/meridian-iam/internal/roles"
	"github.com/meridian-iam/meridian-iam/internal/shared"
	"github.com/meridian-iam/meridian-iam/internal/users"
	"github.com/meridian-iam/meridian-iam/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	direction, err := cfg.InheritDirection()
	if err != nil {
		logger.Error("parse config", slog.Any("error", err))
		os.Exit(1)
	}
	policy, err := cfg.CorruptionPolicy()
	if err != nil {
		logger.Error("parse config", slog.Any("error", err))
		os.Exit(1)
	}

	accessStore := access.NewRepository(pool)
	resolver := access.NewResolver(accessStore, access.Options{
		Direction: direction,
		Policy:    policy,
		Logger:    logger,
		Recorder:  metrics,
	})
	accessCache := access.NewCache(redisClient, cfg.AccessCacheTTL)
	cachedResolver := access.NewCachedResolver(resolver, accessCache, logger)
	guard := access.Middleware{Source: cachedResolver, Logger: logger}
	accessHandler := access.NewHandler(logger, cachedResolver, guard)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, accessCache, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	featuresRepo := features.NewRepository(pool)
	featuresService := features.NewService(featuresRepo, accessCache, logger)
	featuresHandler := features.NewHandler(logger, featuresService, guard)

	pagesRepo := pages.NewRepository(pool)
	pagesService := pages.NewService(pagesRepo, featuresRepo, accessCache, logger)
	pagesHandler := pages.NewHandler(logger, pagesService, guard)

	permissionsRepo := permissions.NewRepository(pool)
	permissionsService := permissions.NewService(permissionsRepo, accessCache, logger)
	permissionsHandler := permissions.NewHandler(logger, permissionsService, guard)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, accessCache, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		AccessHandler:      accessHandler,
		RolesHandler:       rolesHandler,
		FeaturesHandler:    featuresHandler,
		PagesHandler:       pagesHandler,
		PermissionsHandler: permissionsHandler,
		UsersHandler:       usersHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
