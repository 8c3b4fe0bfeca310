package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/category"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for stock movements.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/allocations", h.listAllocations)
	r.Post("/distributions", h.distribute)
	r.Post("/distributions/batch", h.distributeBatch)
	r.Post("/sales", h.sell)
	r.Post("/sales/batch", h.sellBatch)
	r.Post("/returns", h.returnStock)
	r.Post("/returns/batch", h.returnBatch)
	r.Post("/damages", h.damage)
	r.Post("/damages/batch", h.damageBatch)
	r.Post("/warehouse-pushes", h.push)
}

type distributeRequest struct {
	RequestID   string `json:"request_id" validate:"omitempty,uuid4"`
	CategoryID  int64  `json:"category_id" validate:"required"`
	VehicleID   int64  `json:"vehicle_id" validate:"required"`
	Boxes       int64  `json:"boxes" validate:"required,gt=0"`
	Description string `json:"description"`
}

func (r distributeRequest) input(actorID int64) DistributeInput {
	return DistributeInput{
		RequestID:   r.RequestID,
		CategoryID:  r.CategoryID,
		VehicleID:   r.VehicleID,
		Boxes:       r.Boxes,
		Description: r.Description,
		ActorID:     actorID,
	}
}

type sellRequest struct {
	RequestID   string       `json:"request_id" validate:"omitempty,uuid4"`
	CategoryID  int64        `json:"category_id" validate:"required"`
	VehicleID   int64        `json:"vehicle_id" validate:"required"`
	CustomerID  int64        `json:"customer_id" validate:"required"`
	Boxes       int64        `json:"boxes" validate:"required,gt=0"`
	Payment     PaymentSplit `json:"payment"`
	Description string       `json:"description"`
}

func (r sellRequest) input(actorID int64) SellInput {
	return SellInput{
		RequestID:   r.RequestID,
		CategoryID:  r.CategoryID,
		VehicleID:   r.VehicleID,
		CustomerID:  r.CustomerID,
		Boxes:       r.Boxes,
		Payment:     r.Payment,
		Description: r.Description,
		ActorID:     actorID,
	}
}

type returnRequest struct {
	RequestID   string `json:"request_id" validate:"omitempty,uuid4"`
	CategoryID  int64  `json:"category_id" validate:"required"`
	VehicleID   int64  `json:"vehicle_id" validate:"required"`
	Boxes       int64  `json:"boxes" validate:"required,gt=0"`
	Description string `json:"description"`
}

func (r returnRequest) input(actorID int64) ReturnInput {
	return ReturnInput{
		RequestID:   r.RequestID,
		CategoryID:  r.CategoryID,
		VehicleID:   r.VehicleID,
		Boxes:       r.Boxes,
		Description: r.Description,
		ActorID:     actorID,
	}
}

type damageRequest struct {
	RequestID   string       `json:"request_id" validate:"omitempty,uuid4"`
	CategoryID  int64        `json:"category_id" validate:"required"`
	VehicleID   int64        `json:"vehicle_id"`
	Source      DamageSource `json:"source" validate:"required,oneof=warehouse vehicle"`
	Boxes       int64        `json:"boxes" validate:"required,gt=0"`
	Description string       `json:"description"`
}

func (r damageRequest) input(actorID int64) DamageInput {
	return DamageInput{
		RequestID:   r.RequestID,
		CategoryID:  r.CategoryID,
		VehicleID:   r.VehicleID,
		Source:      r.Source,
		Boxes:       r.Boxes,
		Description: r.Description,
		ActorID:     actorID,
	}
}

type pushRequest struct {
	RequestID   string `json:"request_id" validate:"omitempty,uuid4"`
	CategoryID  int64  `json:"category_id" validate:"required"`
	Boxes       int64  `json:"boxes" validate:"required,gt=0"`
	Description string `json:"description"`
}

type batchOptions struct {
	// "continue" (default) applies remaining items after a failure; "abort"
	// stops at the first failure without rolling applied items back.
	Policy string `json:"policy" validate:"omitempty,oneof=continue abort"`
}

func (o batchOptions) batchPolicy() BatchPolicy {
	if o.Policy == "abort" {
		return PolicyAbort
	}
	return PolicyContinue
}

func (h *Handler) distribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.Distribute(r.Context(), req.input(shared.ActorFromContext(r.Context())))
	if err != nil {
		h.respondError(w, "distribute", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type distributeBatchRequest struct {
	batchOptions
	Items []distributeRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) distributeBatch(w http.ResponseWriter, r *http.Request) {
	var req distributeBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	items := make([]DistributeInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.input(actorID))
	}
	result, err := h.service.DistributeBatch(r.Context(), items, req.batchPolicy())
	h.respondBatch(w, result, err)
}

func (h *Handler) sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.Sell(r.Context(), req.input(shared.ActorFromContext(r.Context())))
	if err != nil {
		h.respondError(w, "sell", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type sellBatchRequest struct {
	batchOptions
	Items []sellRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) sellBatch(w http.ResponseWriter, r *http.Request) {
	var req sellBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	items := make([]SellInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.input(actorID))
	}
	result, err := h.service.SellBatch(r.Context(), items, req.batchPolicy())
	h.respondBatch(w, result, err)
}

func (h *Handler) returnStock(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.Return(r.Context(), req.input(shared.ActorFromContext(r.Context())))
	if err != nil {
		h.respondError(w, "return", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type returnBatchRequest struct {
	batchOptions
	Items []returnRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) returnBatch(w http.ResponseWriter, r *http.Request) {
	var req returnBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	items := make([]ReturnInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.input(actorID))
	}
	result, err := h.service.ReturnBatch(r.Context(), items, req.batchPolicy())
	h.respondBatch(w, result, err)
}

func (h *Handler) damage(w http.ResponseWriter, r *http.Request) {
	var req damageRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.RecordDamage(r.Context(), req.input(shared.ActorFromContext(r.Context())))
	if err != nil {
		h.respondError(w, "damage", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type damageBatchRequest struct {
	batchOptions
	Items []damageRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) damageBatch(w http.ResponseWriter, r *http.Request) {
	var req damageBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	items := make([]DamageInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.input(actorID))
	}
	result, err := h.service.DamageBatch(r.Context(), items, req.batchPolicy())
	h.respondBatch(w, result, err)
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.PushToWarehouse(r.Context(), PushInput{
		RequestID:   req.RequestID,
		CategoryID:  req.CategoryID,
		Boxes:       req.Boxes,
		Description: req.Description,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "push to warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listAllocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter AllocationFilter
	filter.CategoryID, _ = strconv.ParseInt(q.Get("category_id"), 10, 64)
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	allocations, err := h.service.ListAllocations(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list allocations", err)
		return
	}
	if allocations == nil {
		allocations = []Allocation{}
	}
	httpx.JSON(w, http.StatusOK, allocations)
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

// respondBatch reports a batch outcome. Abort mode returns 409 with the
// partial result so the caller can see what was already applied.
func (h *Handler) respondBatch(w http.ResponseWriter, result any, err error) {
	if err != nil {
		if errors.Is(err, ErrBatchAborted) {
			httpx.JSON(w, http.StatusConflict, result)
			return
		}
		h.logger.Error("batch failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrVehicleRequired),
		errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrNegativePayment),
		errors.Is(err, ErrOverpayment),
		errors.Is(err, ErrUnknownDamageSource),
		errors.Is(err, ErrInvalidRequestID),
		errors.Is(err, shared.ErrActorRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrVehicleNotFound), errors.Is(err, category.ErrNotFound), errors.Is(err, ErrAllocationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
