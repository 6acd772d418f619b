package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/fuel"
	"github.com/flotilla-erp/flotilla/internal/platform/httpx"
	"github.com/flotilla-erp/flotilla/internal/trips"
	"github.com/flotilla-erp/flotilla/internal/warehouse"
	"github.com/flotilla-erp/flotilla/internal/workshop"
)

// FleetPort lists fleet data for exports.
type FleetPort interface {
	ListUnits(ctx context.Context, filter fleet.UnitFilter) ([]fleet.Unit, error)
	ListOperators(ctx context.Context, filter fleet.OperatorFilter) ([]fleet.Operator, error)
}

// TripsPort lists trips for exports.
type TripsPort interface {
	List(ctx context.Context, filter trips.Filter) ([]trips.Trip, error)
}

// FuelPort lists fuel loads for exports.
type FuelPort interface {
	List(ctx context.Context, filter fuel.Filter) ([]fuel.Load, error)
}

// WorkshopPort lists work orders for exports.
type WorkshopPort interface {
	List(ctx context.Context, filter workshop.Filter) ([]workshop.WorkOrder, error)
}

// WarehousePort lists stock for exports.
type WarehousePort interface {
	ListProducts(ctx context.Context, filter warehouse.ProductFilter) ([]warehouse.Product, error)
}

// Handler serves dataset downloads.
type Handler struct {
	logger    *slog.Logger
	fleet     FleetPort
	trips     TripsPort
	fuel      FuelPort
	workshop  WorkshopPort
	warehouse WarehousePort
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, fleetPort FleetPort, tripsPort TripsPort, fuelPort FuelPort, workshopPort WorkshopPort, warehousePort WarehousePort) *Handler {
	return &Handler{
		logger:    logger,
		fleet:     fleetPort,
		trips:     tripsPort,
		fuel:      fuelPort,
		workshop:  workshopPort,
		warehouse: warehousePort,
	}
}

// MountRoutes registers export routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/units", h.exportUnits)
	r.Get("/operators", h.exportOperators)
	r.Get("/trips", h.exportTrips)
	r.Get("/fuel-loads", h.exportFuelLoads)
	r.Get("/work-orders", h.exportWorkOrders)
	r.Get("/stock", h.exportStock)
}

func (h *Handler) exportUnits(w http.ResponseWriter, r *http.Request) {
	filter := fleet.UnitFilter{
		Status: fleet.UnitStatus(r.URL.Query().Get("status")),
		Type:   fleet.UnitType(r.URL.Query().Get("type")),
	}
	units, err := h.fleet.ListUnits(r.Context(), filter)
	if err != nil {
		h.fail(w, "units", err)
		return
	}
	sheet := Sheet{
		Name:    "Unidades",
		Headers: []string{"Número Económico", "Placas", "Marca", "Modelo", "Año", "Tipo", "Estado", "Odómetro (km)", "Capacidad Diesel (L)", "Próximo Mantenimiento"},
	}
	for _, unit := range units {
		sheet.Rows = append(sheet.Rows, []string{
			unit.EconomicNumber, unit.Plates, unit.Brand, unit.Model,
			strconv.Itoa(unit.Year), string(unit.Type), string(unit.Status),
			fmtFloat(unit.OdometerKM), fmtFloat(unit.FuelCapacityL),
			fmtDatePtr(unit.NextMaintenance),
		})
	}
	h.write(w, r, sheet)
}

func (h *Handler) exportOperators(w http.ResponseWriter, r *http.Request) {
	filter := fleet.OperatorFilter{Status: fleet.OperatorStatus(r.URL.Query().Get("status"))}
	operators, err := h.fleet.ListOperators(r.Context(), filter)
	if err != nil {
		h.fail(w, "operators", err)
		return
	}
	sheet := Sheet{
		Name:    "Operadores",
		Headers: []string{"Número de Empleado", "Nombre", "Licencia", "Tipo de Licencia", "Vence", "Teléfono", "Estado"},
	}
	for _, op := range operators {
		sheet.Rows = append(sheet.Rows, []string{
			op.EmployeeNumber, op.FullName, op.LicenseNumber, op.LicenseType,
			fmtDatePtr(op.LicenseExpiry), op.Phone, string(op.Status),
		})
	}
	h.write(w, r, sheet)
}

func (h *Handler) exportTrips(w http.ResponseWriter, r *http.Request) {
	filter := trips.Filter{Status: trips.Status(r.URL.Query().Get("status"))}
	filter.UnitID, _ = strconv.ParseInt(r.URL.Query().Get("unit_id"), 10, 64)
	list, err := h.trips.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "trips", err)
		return
	}
	sheet := Sheet{
		Name:    "Viajes",
		Headers: []string{"ID", "Unidad", "Operador", "Origen", "Destino", "Estado", "Salida", "Llegada", "Km Recorridos", "Diesel (L)", "Rendimiento (km/L)", "Horas", "Velocidad Promedio"},
	}
	for _, trip := range list {
		sheet.Rows = append(sheet.Rows, []string{
			strconv.FormatInt(trip.ID, 10),
			strconv.FormatInt(trip.UnitID, 10),
			strconv.FormatInt(trip.OperatorID, 10),
			trip.Origin, trip.Destination, string(trip.Status),
			fmtTime(trip.DepartedAt), fmtTimePtr(trip.ArrivedAt),
			fmtFloat(trip.KMTravelled), fmtFloat(trip.DieselLitres),
			fmtFloat(trip.FuelEconomy), fmtFloat(trip.TravelHours), fmtFloat(trip.AverageSpeed),
		})
	}
	h.write(w, r, sheet)
}

func (h *Handler) exportFuelLoads(w http.ResponseWriter, r *http.Request) {
	filter := fuel.Filter{Status: fuel.LoadStatus(r.URL.Query().Get("status"))}
	filter.UnitID, _ = strconv.ParseInt(r.URL.Query().Get("unit_id"), 10, 64)
	loads, err := h.fuel.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "fuel loads", err)
		return
	}
	sheet := Sheet{
		Name:    "CargasDiesel",
		Headers: []string{"ID", "Unidad", "Despachador", "Estado", "Litros", "Odómetro (km)", "Nivel Inicial", "Inicio", "Fin", "Duración (min)"},
	}
	for _, load := range loads {
		sheet.Rows = append(sheet.Rows, []string{
			strconv.FormatInt(load.ID, 10),
			strconv.FormatInt(load.UnitID, 10),
			strconv.FormatInt(load.DispatcherID, 10),
			string(load.Status), fmtFloat(load.Litres), fmtFloat(load.OdometerKM),
			string(load.InitialLevel), fmtTime(load.StartedAt), fmtTimePtr(load.FinishedAt),
			strconv.Itoa(load.LoadMinutes),
		})
	}
	h.write(w, r, sheet)
}

func (h *Handler) exportWorkOrders(w http.ResponseWriter, r *http.Request) {
	filter := workshop.Filter{Status: workshop.Status(r.URL.Query().Get("status"))}
	filter.UnitID, _ = strconv.ParseInt(r.URL.Query().Get("unit_id"), 10, 64)
	orders, err := h.workshop.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "work orders", err)
		return
	}
	sheet := Sheet{
		Name:    "OrdenesTaller",
		Headers: []string{"Folio", "Unidad", "Problema", "Prioridad", "Estado", "Odómetro Entrada", "Odómetro Salida", "Mano de Obra Estimada", "Mano de Obra Real", "Creada", "Terminada"},
	}
	for _, order := range orders {
		sheet.Rows = append(sheet.Rows, []string{
			order.Folio, strconv.FormatInt(order.UnitID, 10), order.Problem,
			string(order.Priority), string(order.Status),
			fmtFloat(order.OdometerIn), fmtFloatPtr(order.OdometerOut),
			fmtMoney(order.LaborCostEstimate), fmtMoney(order.LaborCostActual),
			fmtTime(order.CreatedAt), fmtTimePtr(order.FinishedAt),
		})
	}
	h.write(w, r, sheet)
}

func (h *Handler) exportStock(w http.ResponseWriter, r *http.Request) {
	filter := warehouse.ProductFilter{
		Category: r.URL.Query().Get("category"),
		LowStock: r.URL.Query().Get("low_stock") == "true",
	}
	products, err := h.warehouse.ListProducts(r.Context(), filter)
	if err != nil {
		h.fail(w, "stock", err)
		return
	}
	sheet := Sheet{
		Name:    "Inventario",
		Headers: []string{"SKU", "Categoría", "Descripción", "Ubicación", "Existencia", "Unidad", "Stock Mínimo", "Costo Unitario", "Valor Total", "Caduca", "Activo"},
	}
	for _, product := range products {
		sheet.Rows = append(sheet.Rows, []string{
			product.SKU, product.Category, product.Description, product.Location,
			fmtFloat(product.Quantity), product.Unit, fmtFloat(product.StockMin),
			fmtMoney(product.UnitCost), fmtMoney(product.TotalCost()),
			fmtDatePtr(product.ExpiryDate), strconv.FormatBool(product.Active),
		})
	}
	h.write(w, r, sheet)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, sheet Sheet) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	var err error
	switch format {
	case "xlsx":
		err = sheet.WriteXLSX(w)
	case "csv":
		err = sheet.WriteCSV(w)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Invalid Format", fmt.Sprintf("unsupported format %q", format))
		return
	}
	if err != nil {
		h.logger.Error("export failed", slog.String("sheet", sheet.Name), slog.Any("error", err))
		return
	}
	h.logger.Info("dataset exported", slog.String("sheet", sheet.Name), slog.String("format", format), slog.Int("rows", len(sheet.Rows)))
}

func (h *Handler) fail(w http.ResponseWriter, dataset string, err error) {
	h.logger.Error("export query failed", slog.String("dataset", dataset), slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// Money columns carry thousands separators so the sheets read naturally
// in the office; plain measurements stay as bare decimals.
var moneyPrinter = message.NewPrinter(language.MustParse("es-MX"))

func fmtMoney(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fmtFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}

func fmtTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtTime(*t)
}

func fmtDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
