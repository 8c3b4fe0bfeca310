package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Handler wires HTTP endpoints for customers, orders and expenses.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
		r.Post("/{id}/reconcile", h.reconcile)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/payments", h.recordPayment)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", h.listExpenses)
		r.Post("/", h.recordExpense)
	})
}

type customerRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=255"`
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateCustomer(r.Context(), CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.respondError(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateCustomer(r.Context(), id, CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := CustomerFilter{Search: q.Get("search")}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	customers, total, err := h.service.ListCustomers(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list customers", err)
		return
	}
	if customers == nil {
		customers = []Customer{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"items": customers, "total": total})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	customer, err := h.service.RecalculateDebt(r.Context(), id)
	if err != nil {
		h.respondError(w, "reconcile customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := OrderFilter{Status: stock.PaymentStatus(q.Get("status"))}
	filter.CustomerID, _ = strconv.ParseInt(q.Get("customer_id"), 10, 64)
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if from := q.Get("from"); from != "" {
		filter.From, _ = time.Parse("2006-01-02", from)
	}
	if to := q.Get("to"); to != "" {
		if d, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = d.Add(24*time.Hour - time.Nanosecond)
		}
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	if orders == nil {
		orders = []stock.Order{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"items": orders, "total": total})
}

type paymentRequest struct {
	RequestID string             `json:"request_id" validate:"omitempty,uuid4"`
	Amounts   stock.PaymentSplit `json:"amounts"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.RecordPayment(r.Context(), PaymentInput{
		RequestID: req.RequestID,
		OrderID:   id,
		Amounts:   req.Amounts,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type expenseRequest struct {
	VehicleID   int64           `json:"vehicle_id"`
	Kind        string          `json:"kind" validate:"required,max=64"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"omitempty,max=255"`
	SpentAt     string          `json:"spent_at" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) recordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := ExpenseInput{
		VehicleID:   req.VehicleID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Description: req.Description,
		ActorID:     shared.ActorFromContext(r.Context()),
	}
	if req.SpentAt != "" {
		input.SpentAt, _ = time.Parse("2006-01-02", req.SpentAt)
	}
	created, err := h.service.RecordExpense(r.Context(), input)
	if err != nil {
		h.respondError(w, "record expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ExpenseFilter
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if from := q.Get("from"); from != "" {
		filter.From, _ = time.Parse("2006-01-02", from)
	}
	if to := q.Get("to"); to != "" {
		if d, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = d.Add(24*time.Hour - time.Nanosecond)
		}
	}

	expenses, total, err := h.service.ListExpenses(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list expenses", err)
		return
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"items": expenses, "total": total})
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
	case errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrExpenseNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrOverpayment):
		httpx.Problem(w, http.StatusConflict, "Payment Rejected", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrKindRequired),
		errors.Is(err, ErrNegativeAmount),
		errors.Is(err, ErrZeroPayment),
		errors.Is(err, ErrInvalidRequestID),
		errors.Is(err, shared.ErrActorRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
