package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/refdesk/refdesk/internal/app"
	"github.com/refdesk/refdesk/internal/audit"
	"github.com/refdesk/refdesk/internal/platform/cache"
	"github.com/refdesk/refdesk/internal/platform/db"
	"github.com/refdesk/refdesk/internal/shared"
	"github.com/refdesk/refdesk/internal/stats"
	"github.com/refdesk/refdesk/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable at startup", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	statsRepo := stats.NewRepository(pool)
	statsCache := stats.NewCache(redisClient, cfg.StatsCacheTTL)
	statsService := stats.NewService(statsRepo, statsCache)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	mailSource := jobs.NewMailSource(pool)
	mailer := &jobs.SMTPMailer{
		Host:   cfg.SMTPHost,
		Port:   cfg.SMTPPort,
		From:   cfg.SMTPFrom,
		Logger: logger,
		DryRun: app.InTestMode(),
	}

	reminderJob := jobs.NewAssignmentReminderJob(mailSource, mailer, logger, nil)
	digestJob := jobs.NewScheduleDigestJob(mailSource, mailer, logger, nil)
	warmupJob := jobs.NewStatsWarmupJob(statsService, logger, nil)
	retentionJob := jobs.NewAuditRetentionJob(auditService, idempotencyStore, logger, nil)

	reminderTask, err := jobs.NewAssignmentReminderTask(48)
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	digestTask, err := jobs.NewScheduleDigestTask(7)
	if err != nil {
		logger.Error("build digest task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewStatsWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewAuditRetentionTask(
		int(cfg.AuditRetention.Hours()/24),
		int(cfg.IdempotencyTTL.Hours()),
	)
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAssignmentReminder, Handler: reminderJob.Handle},
			{Type: jobs.TaskScheduleDigest, Handler: digestJob.Handle},
			{Type: jobs.TaskStatsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskAuditRetention, Handler: retentionJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 6 * * 1", Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 1 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	healthRouter := chi.NewRouter()
	jobs.NewHandler(inspector, logger).MountRoutes(healthRouter)
	healthServer := &http.Server{Addr: cfg.WorkerAddr, Handler: healthRouter}
	go func() {
		logger.Info("starting worker health server", slog.String("addr", cfg.WorkerAddr))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker health server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
