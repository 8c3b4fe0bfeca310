package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the account registry.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs users handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type createUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=admin manager clerk driver"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     Role(req.Role),
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Role     string `json:"role" validate:"required,oneof=admin manager clerk driver"`
	Active   bool   `json:"active"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:     req.Name,
		Role:     Role(req.Role),
		Active:   req.Active,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search: q.Get("search"),
		Role:   Role(q.Get("role")),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list users", err)
		return
	}
	if items == nil {
		items = []User{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"items": items, "total": total})
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
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		httpx.Problem(w, http.StatusConflict, "Duplicate Email", err.Error())
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrPasswordTooShort):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
