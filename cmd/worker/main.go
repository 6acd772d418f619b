package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/flotilla-erp/flotilla/internal/app"
	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/observability"
	"github.com/flotilla-erp/flotilla/internal/platform/cache"
	"github.com/flotilla-erp/flotilla/internal/platform/db"
	"github.com/flotilla-erp/flotilla/internal/shared"
	"github.com/flotilla-erp/flotilla/internal/warehouse"
	"github.com/flotilla-erp/flotilla/jobs"
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
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	folios := shared.NewFolioSequencer(redisClient)

	fleetService := fleet.NewService(fleet.NewRepository(pool), auditLogger)
	warehouseService := warehouse.NewService(warehouse.NewRepository(pool), folios, auditLogger, metrics, cfg.ExpiryWarningDays, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobClient.Close() }()

	mailJob := &jobs.SendEmailJob{
		Mailer:  &jobs.SMTPMailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom},
		Logger:  logger,
		Metrics: metrics,
	}
	maintenanceJob := jobs.NewMaintenanceScanJob(fleetService, jobClient, cfg.OpsNotifyEmail, logger, metrics)
	licenseJob := jobs.NewLicenseScanJob(fleetService, jobClient, cfg.OpsNotifyEmail, logger, metrics)
	expiryJob := jobs.NewExpiryScanJob(warehouseService, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{Store: shared.NewIdempotencyStore(pool), Logger: logger, Metrics: metrics}

	licenseTask, err := jobs.NewLicenseScanTask(jobs.LicenseScanPayload{WindowDays: 30})
	if err != nil {
		logger.Error("build license task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskTypeMaintenanceScan, Handler: maintenanceJob.Handle},
			{Type: jobs.TaskTypeLicenseScan, Handler: licenseJob.Handle},
			{Type: jobs.TaskTypeExpiryScan, Handler: expiryJob.Handle},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: jobs.NewMaintenanceScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 6 * * 1", Task: licenseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 7 * * *", Task: jobs.NewExpiryScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 4 * * 0", Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
