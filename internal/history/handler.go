package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires the history listing endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs history handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers history routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type listResponse struct {
	Entries    []EnrichedEntry   `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Event: Event(q.Get("event")),
		Type:  q.Get("type"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	if fromStr := q.Get("from"); fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid from date")
			return
		}
		filter.From = from
	}
	if toStr := q.Get("to"); toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid to date")
			return
		}
		// end of day
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}

	entries, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("list history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if entries == nil {
		entries = []EnrichedEntry{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Entries: entries, Pagination: pagination})
}
