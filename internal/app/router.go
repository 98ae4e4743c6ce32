package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stocklane/stocklane/internal/analytics"
	"github.com/stocklane/stocklane/internal/batches"
	"github.com/stocklane/stocklane/internal/masterdata"
	"github.com/stocklane/stocklane/internal/observability"
	"github.com/stocklane/stocklane/internal/purchasing"
	"github.com/stocklane/stocklane/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	PurchasingHandler *purchasing.Handler
	BatchesHandler    *batches.Handler
	MasterDataHandler *masterdata.Handler
	AnalyticsHandler  *analytics.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Stocklane defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.MasterDataHandler != nil {
			api.Route("/shops", params.MasterDataHandler.MountShopRoutes)
			api.Route("/suppliers", params.MasterDataHandler.MountSupplierRoutes)
			api.Route("/products", params.MasterDataHandler.MountProductRoutes)
		}
		if params.PurchasingHandler != nil {
			api.Route("/purchase-orders", params.PurchasingHandler.MountRoutes)
		}
		if params.BatchesHandler != nil {
			api.Route("/batches", params.BatchesHandler.MountRoutes)
		}
		if params.AnalyticsHandler != nil {
			api.Route("/analytics", params.AnalyticsHandler.MountRoutes)
		}
	})

	return r
}
