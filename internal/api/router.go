package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sheetserve/sheetserve/internal/api/handler"
	"github.com/sheetserve/sheetserve/internal/api/middleware"
	"github.com/sheetserve/sheetserve/internal/auth"
	"github.com/sheetserve/sheetserve/internal/calllog"
	"github.com/sheetserve/sheetserve/internal/quota"
	"github.com/sheetserve/sheetserve/internal/storage"
	"github.com/sirupsen/logrus"
)

// Deps bundles what the router needs.
type Deps struct {
	Store         storage.Storage
	Authenticator *auth.Authenticator
	CallLog       *calllog.Logger
	QuotaStore    quota.Store
	Policy        quota.Policy
	AdminToken    string
	Log           *logrus.Logger
	Registry      *prometheus.Registry
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(d.Log))
	if d.Registry != nil {
		metrics := middleware.NewMetrics(d.Registry)
		r.Use(metrics.Handler)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Public data API: the generated REST resource per endpoint.
	// Authentication here is the project's own protection policy, not the
	// management bearer token.
	dataHandler := handler.NewDataHandler(d.Store, d.Authenticator, d.CallLog, d.Log)
	r.Route("/api/projects/{projectSlug}/endpoints/{endpointSlug}", func(r chi.Router) {
		r.Get("/", dataHandler.Get)
		r.Post("/", dataHandler.Create)
		r.Patch("/", dataHandler.Update)
		r.Delete("/", dataHandler.Delete)
		r.Options("/", dataHandler.Preflight)
	})

	// Management API (bearer auth, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(d.Store, d.AdminToken))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(d.Store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Patch("/keys/{id}/toggle", keyHandler.Toggle)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Projects
		projectHandler := handler.NewProjectHandler(d.Store)
		r.Post("/projects", projectHandler.Create)
		r.Get("/projects", projectHandler.List)
		r.Route("/projects/{slug}", func(r chi.Router) {
			r.Get("/", projectHandler.Get)
			r.Delete("/", projectHandler.Delete)
			r.Post("/protection", projectHandler.ToggleProtection)

			// Endpoints
			endpointHandler := handler.NewEndpointHandler(d.Store)
			r.Post("/endpoints", endpointHandler.Create)
			r.Get("/endpoints", endpointHandler.List)
			r.Delete("/endpoints/{id}", endpointHandler.Delete)
		})

		// Usage & analytics
		usageHandler := handler.NewUsageHandler(d.Store, d.QuotaStore, d.Policy)
		r.Get("/usage", usageHandler.Usage)
		r.Get("/analytics/overview", usageHandler.Overview)
	})

	return r
}
