package category

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for category master data.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs category handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
}

type createCategoryRequest struct {
	Title       string          `json:"title" validate:"required,min=2"`
	PricePerBox decimal.Decimal `json:"price_per_box"`
	SalesPrice  decimal.Decimal `json:"sales_price"`
}

type updateCategoryRequest struct {
	Title       string          `json:"title" validate:"required,min=2"`
	PricePerBox decimal.Decimal `json:"price_per_box"`
	SalesPrice  decimal.Decimal `json:"sales_price"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Create(r.Context(), CreateInput{
		Title:       req.Title,
		PricePerBox: req.PricePerBox,
		SalesPrice:  req.SalesPrice,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid category id")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid category id")
		return
	}
	var req updateCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Update(r.Context(), id, UpdateInput{
		Title:       req.Title,
		PricePerBox: req.PricePerBox,
		SalesPrice:  req.SalesPrice,
	})
	if err != nil {
		h.respondError(w, "update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

type listResponse struct {
	Categories []Category        `json:"categories"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	categories, pagination, err := h.service.List(r.Context(), ListFilter{
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.respondError(w, "list categories", err)
		return
	}
	if categories == nil {
		categories = []Category{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Categories: categories, Pagination: pagination})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateTitle):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrNegativePrice), errors.Is(err, shared.ErrActorRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
