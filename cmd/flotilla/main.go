package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/flotilla-erp/flotilla/internal/app"
	"github.com/flotilla-erp/flotilla/internal/export"
	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/fuel"
	"github.com/flotilla-erp/flotilla/internal/maps"
	"github.com/flotilla-erp/flotilla/internal/observability"
	"github.com/flotilla-erp/flotilla/internal/platform/cache"
	"github.com/flotilla-erp/flotilla/internal/platform/db"
	"github.com/flotilla-erp/flotilla/internal/procurement"
	"github.com/flotilla-erp/flotilla/internal/shared"
	"github.com/flotilla-erp/flotilla/internal/trips"
	"github.com/flotilla-erp/flotilla/internal/warehouse"
	"github.com/flotilla-erp/flotilla/internal/workshop"
	"github.com/flotilla-erp/flotilla/jobs"
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
		logger.Warn("redis unavailable, folio sequencing falls back to postgres", slog.Any("error", err))
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

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("job queue unavailable", slog.Any("error", err))
	}
	defer func() {
		if jobClient != nil {
			_ = jobClient.Close()
		}
	}()

	fleetService := fleet.NewService(fleet.NewRepository(pool), auditLogger)

	mapsClient := maps.NewClient(cfg.GoogleMapsAPIKey, cfg.GoogleMapsTimeout)
	tripsService := trips.NewService(trips.NewRepository(pool), fleetService, mapsClient, auditLogger, logger)

	drafts := fuel.NewDraftStore(redisClient, cfg.FuelDraftTTL)
	fuelService := fuel.NewService(fuel.NewRepository(pool), drafts, fleetService, auditLogger, logger)
	fuelService.SetIdempotency(shared.NewIdempotencyStore(pool))

	notifier := &app.MailNotifier{Client: jobClient, To: cfg.OpsNotifyEmail}
	workshopService := workshop.NewService(workshop.NewRepository(pool), folios, fleetService, nil, notifier, auditLogger, logger)
	procurementService := procurement.NewService(procurement.NewRepository(pool), folios, nil, nil, auditLogger, logger)
	warehouseService := warehouse.NewService(warehouse.NewRepository(pool), folios, auditLogger, metrics, cfg.ExpiryWarningDays, logger)

	// The three services call each other through ports, wired after
	// construction to break the dependency cycle.
	workshopService.SetProcurement(&app.ProcurementAdapter{Service: procurementService})
	procurementService.SetWorkshop(&app.WorkshopAdapter{Service: workshopService})
	procurementService.SetWarehouse(&app.WarehouseAdapter{Service: warehouseService})

	exportHandler := export.NewHandler(logger, fleetService, tripsService, fuelService, workshopService, warehouseService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		FleetHandler:       fleet.NewHandler(logger, fleetService),
		TripsHandler:       trips.NewHandler(logger, tripsService),
		FuelHandler:        fuel.NewHandler(logger, fuelService),
		WorkshopHandler:    workshop.NewHandler(logger, workshopService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		WarehouseHandler:   warehouse.NewHandler(logger, warehouseService),
		ExportHandler:      exportHandler,
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
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
