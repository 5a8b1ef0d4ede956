package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/app"
	jobmetrics "github.com/meridian-iam/meridian-iam/internal/jobs"
	"github.com/meridian-iam/meridian-iam/internal/observability"
	"github.com/meridian-iam/meridian-iam/internal/platform/cache"
	"github.com/meridian-iam/meridian-iam/internal/platform/db"
	"github.com/meridian-iam/meridian-iam/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	jobMetrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewAccessWarmupJob(cachedResolver, pool, logger, jobMetrics)
	auditJob := jobs.NewHierarchyAuditJob(accessStore, metrics, logger, jobMetrics)

	var cron []jobs.CronRegistration
	if cfg.HierarchyAuditCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.HierarchyAuditCron,
			Task:    jobs.NewHierarchyAuditTask(),
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}
	if cfg.AccessWarmupCron != "" {
		warmupTask, err := jobs.NewAccessWarmupTask(jobs.AccessWarmupPayload{})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.AccessWarmupCron,
			Task:    warmupTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAccessWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskHierarchyAudit, Handler: auditJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
