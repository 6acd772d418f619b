package fuel

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/platform/httpx"
	"github.com/flotilla-erp/flotilla/internal/shared"
)

// Handler wires HTTP endpoints for fuel loads.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers fuel routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/wizard", func(r chi.Router) {
		r.Post("/", h.startWizard)
		r.Get("/{draftID}", h.getDraft)
		r.Post("/{draftID}/dashboard", h.submitDashboard)
		r.Post("/{draftID}/old-padlock", h.submitOldPadlock)
		r.Post("/{draftID}/litres", h.submitLitres)
		r.Post("/{draftID}/new-padlock", h.submitNewPadlock)
		r.Post("/{draftID}/ticket", h.submitTicket)
		r.Post("/{draftID}/finalize", h.finalize)
		r.Delete("/{draftID}", h.abandon)
	})
	r.Route("/loads", func(r chi.Router) {
		r.Get("/", h.listLoads)
		r.Get("/{id}", h.getLoad)
	})
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.listAlerts)
		r.Post("/{id}/resolve", h.resolveAlert)
	})
}

func (h *Handler) startWizard(w http.ResponseWriter, r *http.Request) {
	var input StepUnit
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := h.service.StartWizard(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, draft)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) submitDashboard(w http.ResponseWriter, r *http.Request) {
	var input StepDashboard
	h.submitStep(w, r, &input, func(draftID string) (Draft, error) {
		return h.service.SubmitDashboard(r.Context(), draftID, input)
	})
}

func (h *Handler) submitOldPadlock(w http.ResponseWriter, r *http.Request) {
	var input StepOldPadlock
	h.submitStep(w, r, &input, func(draftID string) (Draft, error) {
		return h.service.SubmitOldPadlock(r.Context(), draftID, input)
	})
}

func (h *Handler) submitLitres(w http.ResponseWriter, r *http.Request) {
	var input StepLitres
	h.submitStep(w, r, &input, func(draftID string) (Draft, error) {
		return h.service.SubmitLitres(r.Context(), draftID, input)
	})
}

func (h *Handler) submitNewPadlock(w http.ResponseWriter, r *http.Request) {
	var input StepNewPadlock
	h.submitStep(w, r, &input, func(draftID string) (Draft, error) {
		return h.service.SubmitNewPadlock(r.Context(), draftID, input)
	})
}

func (h *Handler) submitTicket(w http.ResponseWriter, r *http.Request) {
	var input StepTicket
	h.submitStep(w, r, &input, func(draftID string) (Draft, error) {
		return h.service.SubmitTicket(r.Context(), draftID, input)
	})
}

// submitStep decodes and validates the payload then runs the step.
func (h *Handler) submitStep(w http.ResponseWriter, r *http.Request, input any, run func(string) (Draft, error)) {
	if err := httpx.DecodeJSON(r, input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := run(chi.URLParam(r, "draftID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ActorID int64 `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	load, alerts, err := h.service.Finalize(r.Context(), chi.URLParam(r, "draftID"), input.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"load": load, "alerts": alerts})
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) listLoads(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Status: LoadStatus(r.URL.Query().Get("status"))}
	filter.UnitID, _ = strconv.ParseInt(r.URL.Query().Get("unit_id"), 10, 64)
	filter.DispatcherID, _ = strconv.ParseInt(r.URL.Query().Get("dispatcher_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	loads, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loads": loads})
}

func (h *Handler) getLoad(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	load, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, load)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	onlyOpen := r.URL.Query().Get("open") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts, err := h.service.ListAlerts(r.Context(), onlyOpen, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var input struct {
		ActorID int64 `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	alert, err := h.service.ResolveAlert(r.Context(), id, input.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alert)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDraftNotFound), errors.Is(err, ErrLoadNotFound),
		errors.Is(err, ErrAlertNotFound), errors.Is(err, fleet.ErrUnitNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrWrongStep), errors.Is(err, ErrDraftIncomplete),
		errors.Is(err, ErrAlertResolved), errors.Is(err, fleet.ErrUnitInactive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Operation", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("fuel request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
