package fleet

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/flotilla-erp/flotilla/internal/platform/httpx"
)

// Handler wires HTTP endpoints for fleet management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers fleet routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/units", func(r chi.Router) {
		r.Get("/", h.listUnits)
		r.Post("/", h.createUnit)
		r.Get("/maintenance-due", h.unitsDueForMaintenance)
		r.Get("/{id}", h.getUnit)
		r.Patch("/{id}", h.updateUnit)
		r.Post("/{id}/status", h.changeUnitStatus)
		r.Post("/{id}/odometer", h.reportOdometer)
		r.Get("/{id}/odometer-log", h.odometerLog)
		r.Post("/{id}/maintenance", h.scheduleMaintenance)
	})
	r.Route("/operators", func(r chi.Router) {
		r.Get("/", h.listOperators)
		r.Post("/", h.createOperator)
		r.Get("/expiring-licenses", h.expiringLicenses)
		r.Get("/{id}", h.getOperator)
		r.Post("/{id}/status", h.changeOperatorStatus)
		r.Post("/{id}/assign", h.assignUnit)
	})
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	var input CreateUnitInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unit, err := h.service.CreateUnit(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	filter := UnitFilter{
		Status: UnitStatus(r.URL.Query().Get("status")),
		Type:   UnitType(r.URL.Query().Get("type")),
		Search: r.URL.Query().Get("q"),
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	units, err := h.service.ListUnits(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"units": units})
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) updateUnit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input UpdateUnitInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	unit, err := h.service.UpdateUnit(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) changeUnitStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input struct {
		Status  UnitStatus `json:"status" validate:"required"`
		ActorID int64      `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	unit, err := h.service.ChangeUnitStatus(r.Context(), id, input.Status, input.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) reportOdometer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input struct {
		Reading float64 `json:"reading" validate:"gte=0"`
		ActorID int64   `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	current, err := h.service.AdvanceOdometer(r.Context(), id, input.Reading, OdometerSourceManual)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"odometer_km": current})
}

func (h *Handler) odometerLog(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.OdometerLog(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) scheduleMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input struct {
		Date    string `json:"date" validate:"required"`
		ActorID int64  `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "la fecha debe tener formato YYYY-MM-DD")
		return
	}
	if err := h.service.ScheduleMaintenance(r.Context(), id, date, input.ActorID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) unitsDueForMaintenance(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.UnitsDueForMaintenance(r.Context(), time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"units": units})
}

func (h *Handler) createOperator(w http.ResponseWriter, r *http.Request) {
	var input CreateOperatorInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	op, err := h.service.CreateOperator(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, op)
}

func (h *Handler) listOperators(w http.ResponseWriter, r *http.Request) {
	filter := OperatorFilter{
		Status: OperatorStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("q"),
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	operators, err := h.service.ListOperators(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operators": operators})
}

func (h *Handler) getOperator(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	op, err := h.service.GetOperator(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) changeOperatorStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input struct {
		Status  OperatorStatus `json:"status" validate:"required"`
		ActorID int64          `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	op, err := h.service.ChangeOperatorStatus(r.Context(), id, input.Status, input.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) assignUnit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input struct {
		UnitID  *int64 `json:"unit_id"`
		ActorID int64  `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	op, err := h.service.AssignUnit(r.Context(), id, input.UnitID, input.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) expiringLicenses(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	operators, err := h.service.OperatorsWithExpiringLicenses(r.Context(), time.Now(), days)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operators": operators})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnitNotFound), errors.Is(err, ErrOperatorNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateUnit), errors.Is(err, ErrDuplicateOperator):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrUnitInactive), errors.Is(err, ErrOperatorSuspended),
		errors.Is(err, ErrInvalidUnitStatus), errors.Is(err, ErrOdometerBackwards):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Operation", err.Error())
	default:
		h.logger.Error("fleet request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
