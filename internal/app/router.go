package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/category"
	"github.com/meridian-erp/meridian-erp/internal/dashboard"
	"github.com/meridian-erp/meridian-erp/internal/fleet"
	"github.com/meridian-erp/meridian-erp/internal/history"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/requisition"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/users"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// RouterParams aggregates everything the HTTP surface needs.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Category    *category.Handler
	Stock       *stock.Handler
	Requisition *requisition.Handler
	History     *history.Handler
	Sales       *sales.Handler
	Fleet       *fleet.Handler
	Dashboard   *dashboard.Handler
	Users       *users.Handler
	Jobs        *jobs.Handler
}

// NewRouter assembles the chi router with the full middleware chain and all
// mounted domain handlers.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config}) {
		r.Use(mw)
	}
	r.Use(actorMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/categories", p.Category.MountRoutes)
		r.Route("/stock", p.Stock.MountRoutes)
		r.Route("/requisitions", p.Requisition.MountRoutes)
		r.Route("/history", p.History.MountRoutes)
		r.Group(p.Sales.MountRoutes)
		r.Group(p.Fleet.MountRoutes)
		r.Route("/dashboard", p.Dashboard.MountRoutes)
		r.Route("/users", p.Users.MountRoutes)
		r.Route("/jobs", p.Jobs.MountRoutes)
	})

	return r
}

// actorMiddleware lifts the authenticated user id from the gateway header
// into context. Authentication itself happens upstream.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Actor-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
