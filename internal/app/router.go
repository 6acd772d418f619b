package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/flotilla-erp/flotilla/internal/export"
	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/fuel"
	"github.com/flotilla-erp/flotilla/internal/observability"
	"github.com/flotilla-erp/flotilla/internal/procurement"
	"github.com/flotilla-erp/flotilla/internal/trips"
	"github.com/flotilla-erp/flotilla/internal/warehouse"
	"github.com/flotilla-erp/flotilla/internal/workshop"
	"github.com/flotilla-erp/flotilla/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	FleetHandler       *fleet.Handler
	TripsHandler       *trips.Handler
	FuelHandler        *fuel.Handler
	WorkshopHandler    *workshop.Handler
	ProcurementHandler *procurement.Handler
	WarehouseHandler   *warehouse.Handler
	ExportHandler      *export.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/fleet", params.FleetHandler.MountRoutes)
	r.Route("/trips", params.TripsHandler.MountRoutes)
	r.Route("/fuel", params.FuelHandler.MountRoutes)
	r.Route("/workshop", params.WorkshopHandler.MountRoutes)
	r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	r.Route("/warehouse", params.WarehouseHandler.MountRoutes)
	if params.ExportHandler != nil {
		r.Route("/export", params.ExportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
