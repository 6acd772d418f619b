package export

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/fuel"
	"github.com/flotilla-erp/flotilla/internal/trips"
	"github.com/flotilla-erp/flotilla/internal/warehouse"
	"github.com/flotilla-erp/flotilla/internal/workshop"
)

type fakeFleet struct{}

func (fakeFleet) ListUnits(context.Context, fleet.UnitFilter) ([]fleet.Unit, error) {
	next := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	return []fleet.Unit{{
		EconomicNumber:  "TC-042",
		Plates:          "ABC-123-D",
		Brand:           "Kenworth",
		Model:           "T680",
		Year:            2021,
		Type:            fleet.UnitTypeTracto,
		Status:          fleet.UnitStatusAvailable,
		OdometerKM:      118500,
		FuelCapacityL:   900,
		NextMaintenance: &next,
	}}, nil
}

func (fakeFleet) ListOperators(context.Context, fleet.OperatorFilter) ([]fleet.Operator, error) {
	return []fleet.Operator{{EmployeeNumber: "EMP-007", FullName: "Juan Pérez"}}, nil
}

type fakeTrips struct{}

func (fakeTrips) List(context.Context, trips.Filter) ([]trips.Trip, error) {
	return nil, nil
}

type fakeFuel struct{}

func (fakeFuel) List(context.Context, fuel.Filter) ([]fuel.Load, error) {
	return nil, nil
}

type fakeWorkshop struct{}

func (fakeWorkshop) List(context.Context, workshop.Filter) ([]workshop.WorkOrder, error) {
	return nil, nil
}

type fakeWarehouse struct{}

func (fakeWarehouse) ListProducts(context.Context, warehouse.ProductFilter) ([]warehouse.Product, error) {
	return []warehouse.Product{{
		SKU: "FLT-001", Category: "FILTROS", Description: "Filtro de aceite",
		Location: "A-01", Quantity: 12, Unit: "PZA", StockMin: 4, UnitCost: 180, Active: true,
	}}, nil
}

func newTestRouter() http.Handler {
	h := NewHandler(slog.Default(), fakeFleet{}, fakeTrips{}, fakeFuel{}, fakeWorkshop{}, fakeWarehouse{})
	r := chi.NewRouter()
	r.Route("/export", h.MountRoutes)
	return r
}

func TestExportUnitsCSV(t *testing.T) {
	router := newTestRouter()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/units", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, rr.Header().Get("Content-Disposition"), "unidades.csv")

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Número Económico")
	require.Contains(t, lines[1], "TC-042")
	require.Contains(t, lines[1], "118500.00")
	require.Contains(t, lines[1], "2025-09-15")
}

func TestExportStockXLSX(t *testing.T) {
	router := newTestRouter()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/stock?format=xlsx", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "inventario.xlsx")
	require.NotEmpty(t, rr.Body.Bytes())
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	router := newTestRouter()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/operators?format=pdf", nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
