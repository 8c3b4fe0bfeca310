package requisition

import (
	"context"
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

// Handler wires HTTP endpoints for the requisition workflow.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs requisition handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers requisition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve", h.decide(h.service.Approve))
	r.Post("/{id}/deny", h.decide(h.service.Deny))
	r.Post("/{id}/issue", h.decide(h.service.Issue))
	r.Post("/{id}/push", h.decide(h.service.Push))
}

type createRequisitionRequest struct {
	RequestID   string `json:"request_id" validate:"omitempty,uuid4"`
	Type        string `json:"type" validate:"required,oneof=production warehouse"`
	CategoryID  int64  `json:"category_id" validate:"required"`
	Boxes       int64  `json:"boxes" validate:"required,gt=0"`
	Description string `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequisitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		RequestID:   req.RequestID,
		Type:        Type(req.Type),
		CategoryID:  req.CategoryID,
		Boxes:       req.Boxes,
		Description: req.Description,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "create requisition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) decide(op func(ctx context.Context, id, actorID int64) (Requisition, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid requisition id")
			return
		}
		updated, err := op(r.Context(), id, shared.ActorFromContext(r.Context()))
		if err != nil {
			h.respondError(w, "transition requisition", err)
			return
		}
		httpx.JSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid requisition id")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Type:  Type(q.Get("type")),
		State: State(q.Get("state")),
	}
	filter.CategoryID, _ = strconv.ParseInt(q.Get("category_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list requisitions", err)
		return
	}
	if items == nil {
		items = []Requisition{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, category.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidRequestID),
		errors.Is(err, shared.ErrActorRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
