package fleet

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for vehicles and trips.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs fleet handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers fleet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vehicles", func(r chi.Router) {
		r.Get("/", h.listVehicles)
		r.Post("/", h.createVehicle)
		r.Get("/{id}", h.getVehicle)
		r.Put("/{id}", h.updateVehicle)
	})
	r.Route("/trips", func(r chi.Router) {
		r.Get("/", h.listTrips)
		r.Post("/", h.createTrip)
		r.Get("/{id}", h.getTrip)
		r.Post("/{id}/dispatch", h.dispatch)
		r.Post("/{id}/complete", h.complete)
		r.Post("/{id}/cancel", h.cancel)
	})
}

type vehicleRequest struct {
	Registration  string `json:"registration" validate:"required,min=2,max=32"`
	Driver        string `json:"driver" validate:"omitempty,max=120"`
	CapacityBoxes int64  `json:"capacity_boxes" validate:"omitempty,gte=0"`
	Active        *bool  `json:"active"`
}

func (r vehicleRequest) input(actorID int64) VehicleInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return VehicleInput{
		Registration:  r.Registration,
		Driver:        r.Driver,
		CapacityBoxes: r.CapacityBoxes,
		Active:        active,
		ActorID:       actorID,
	}
}

func (h *Handler) createVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateVehicle(r.Context(), req.input(shared.ActorFromContext(r.Context())))
	if err != nil {
		h.respondError(w, "create vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	vehicle, err := h.service.GetVehicle(r.Context(), id)
	if err != nil {
		h.respondError(w, "get vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vehicle)
}

func (h *Handler) updateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req vehicleRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateVehicle(r.Context(), id, req.input(shared.ActorFromContext(r.Context())))
	if err != nil {
		h.respondError(w, "update vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := VehicleFilter{
		Search:     q.Get("search"),
		ActiveOnly: q.Get("active") == "true",
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	vehicles, total, err := h.service.ListVehicles(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list vehicles", err)
		return
	}
	if vehicles == nil {
		vehicles = []Vehicle{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"items": vehicles, "total": total})
}

type manifestLineRequest struct {
	CategoryID int64 `json:"category_id" validate:"required"`
	Boxes      int64 `json:"boxes" validate:"required,gt=0"`
}

type createTripRequest struct {
	VehicleID int64                 `json:"vehicle_id" validate:"required"`
	Notes     string                `json:"notes" validate:"omitempty,max=255"`
	Manifest  []manifestLineRequest `json:"manifest" validate:"required,min=1,dive"`
}

func (h *Handler) createTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := TripInput{
		VehicleID: req.VehicleID,
		Notes:     req.Notes,
		ActorID:   shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Manifest {
		input.Manifest = append(input.Manifest, ManifestLineInput{
			CategoryID: line.CategoryID,
			Boxes:      line.Boxes,
		})
	}
	created, err := h.service.CreateTrip(r.Context(), input)
	if err != nil {
		h.respondError(w, "create trip", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	trip, err := h.service.GetTrip(r.Context(), id)
	if err != nil {
		h.respondError(w, "get trip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

func (h *Handler) listTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TripFilter{Status: TripStatus(q.Get("status"))}
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	trips, total, err := h.service.ListTrips(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list trips", err)
		return
	}
	if trips == nil {
		trips = []Trip{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"items": trips, "total": total})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	trip, err := h.service.Dispatch(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "dispatch trip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

type deliveryRequest struct {
	LineID         int64 `json:"line_id" validate:"required"`
	DeliveredBoxes int64 `json:"delivered_boxes" validate:"gte=0"`
}

type completeTripRequest struct {
	Deliveries []deliveryRequest `json:"deliveries" validate:"omitempty,dive"`
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req completeTripRequest
	if !h.decode(w, r, &req) {
		return
	}
	deliveries := make([]DeliveryInput, 0, len(req.Deliveries))
	for _, d := range req.Deliveries {
		deliveries = append(deliveries, DeliveryInput{
			LineID:         d.LineID,
			DeliveredBoxes: d.DeliveredBoxes,
		})
	}
	trip, err := h.service.Complete(r.Context(), id, shared.ActorFromContext(r.Context()), deliveries)
	if err != nil {
		h.respondError(w, "complete trip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

type cancelTripRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req cancelTripRequest
	if !h.decode(w, r, &req) {
		return
	}
	trip, err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		h.respondError(w, "cancel trip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrVehicleNotFound), errors.Is(err, ErrTripNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrDuplicateRegistration):
		httpx.Problem(w, http.StatusConflict, "Duplicate Registration", err.Error())
	case errors.Is(err, ErrRegistrationRequired),
		errors.Is(err, ErrEmptyManifest),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrDeliveredExceedsLoad),
		errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrVehicleInactive),
		errors.Is(err, shared.ErrActorRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
