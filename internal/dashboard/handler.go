package dashboard

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for dashboard aggregates.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs dashboard handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/overview", h.overview)
	r.Get("/sales/daily", h.dailySales)
	r.Get("/sales/weekly", h.weeklySales)
	r.Get("/sales/monthly", h.monthlySales)
	r.Get("/totals/creators", h.totalsByCreator)
	r.Get("/totals/categories", h.totalsByCategory)
	r.Get("/export/sales.csv", h.exportSales)
	r.Get("/export/categories.csv", h.exportCategories)
}

// period reads year/month query params defaulting to the current month.
func period(r *http.Request) (int, time.Month) {
	now := time.Now().UTC()
	year, month := now.Year(), now.Month()
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		year = y
	}
	if m, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil {
		month = time.Month(m)
	}
	return year, month
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	year, month := period(r)
	overview, err := h.service.Overview(r.Context(), year, month)
	if err != nil {
		h.respondError(w, "overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	year, month := period(r)
	points, err := h.service.DailySales(r.Context(), year, month)
	if err != nil {
		h.respondError(w, "daily sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) weeklySales(w http.ResponseWriter, r *http.Request) {
	year, _ := period(r)
	points, err := h.service.WeeklySales(r.Context(), year)
	if err != nil {
		h.respondError(w, "weekly sales", err)
		return
	}
	if points == nil {
		points = []SalesPoint{}
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	year, _ := period(r)
	points, err := h.service.MonthlySales(r.Context(), year)
	if err != nil {
		h.respondError(w, "monthly sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) totalsByCreator(w http.ResponseWriter, r *http.Request) {
	year, month := period(r)
	totals, err := h.service.TotalsByCreator(r.Context(), year, month)
	if err != nil {
		h.respondError(w, "totals by creator", err)
		return
	}
	if totals == nil {
		totals = []CreatorTotal{}
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) totalsByCategory(w http.ResponseWriter, r *http.Request) {
	year, month := period(r)
	totals, err := h.service.TotalsByCategory(r.Context(), year, month)
	if err != nil {
		h.respondError(w, "totals by category", err)
		return
	}
	if totals == nil {
		totals = []CategoryTotal{}
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) exportSales(w http.ResponseWriter, r *http.Request) {
	year, month := period(r)
	points, err := h.service.DailySales(r.Context(), year, month)
	if err != nil {
		h.respondError(w, "export sales", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
	if err := WriteSalesCSV(w, points); err != nil {
		h.logger.Error("write sales csv", slog.Any("error", err))
	}
}

func (h *Handler) exportCategories(w http.ResponseWriter, r *http.Request) {
	year, month := period(r)
	totals, err := h.service.TotalsByCategory(r.Context(), year, month)
	if err != nil {
		h.respondError(w, "export categories", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="categories.csv"`)
	if err := WriteCategoryCSV(w, totals); err != nil {
		h.logger.Error("write categories csv", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrInvalidPeriod) {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
