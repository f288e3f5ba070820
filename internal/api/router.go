package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/investoscope/investoscope-backend/internal/api/handlers"
	custommiddleware "github.com/investoscope/investoscope-backend/internal/api/middleware"
	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/service"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Catalogue   *service.CatalogueService
	Prices      *service.PriceService
	Nav         *service.NavService
	Maintenance *service.MaintenanceService
	System      *service.SystemService
	Credentials *service.CredentialService
	Progress    progress.Store
	SyncLogs    *repository.SyncLogRepository
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Get("/sync-status", systemHandler.SyncStatus)
		})

		r.Route("/jobs", func(r chi.Router) {
			progressHandler := handlers.NewProgressHandler(svc.Progress, svc.SyncLogs)
			r.Get("/progress/{jobId}", progressHandler.Progress)
			r.Get("/logs", progressHandler.Logs)

			// Triggers guarded by the shared cron secret.
			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.CronKey(cfg.Jobs.CronSecret))
				jobsHandler := handlers.NewJobsHandler(svc.Catalogue, svc.Prices, svc.Nav, svc.Maintenance)
				r.Post("/sync-catalogue", jobsHandler.SyncCatalogue)
				r.Post("/sync-prices", jobsHandler.SyncPrices)
				r.Post("/sync-mf-nav", jobsHandler.SyncMFNav)
				r.Post("/auto-sync-if-stale", jobsHandler.AutoSyncIfStale)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommiddleware.CronKey(cfg.Jobs.CronSecret))
			adminHandler := handlers.NewAdminHandler(svc.Credentials)
			r.Put("/vendor-keys", adminHandler.UpdateVendorKeys)
		})
	})

	return r
}
