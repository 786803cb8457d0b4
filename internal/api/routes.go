package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, cronSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", userIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// No auth on health checks and metrics.
	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
		})
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/cron", func(r chi.Router) {
			r.Use(requireCronSecret(cronSecret))
			r.Get("/reverify", h.HandleReverifyCron)
			r.Get("/verify-pending", h.HandleVerifyPendingCron)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Post("/domains", h.HandleCreateDomain)
			r.Get("/domains/{id}", h.HandleGetDomain)
			r.Post("/domains/{id}/verify", h.HandleVerifyDomain)
			r.Post("/domains/{id}/refresh", h.HandleRefreshDomain)
			r.Get("/domains/{id}/history", h.HandleSnapshotHistory)
			r.Delete("/domains/{id}", h.HandleDeleteDomain)
			r.Post("/domains/{id}/archive", h.HandleArchiveDomain)
			r.Post("/domains/{id}/unarchive", h.HandleUnarchiveDomain)
			r.Put("/domains/{id}/notification-overrides/{category}", h.HandleSetOverride)
			r.Delete("/domains/{id}/notification-overrides/{category}", h.HandleClearOverride)

			r.Post("/revalidate", h.HandleRevalidate)
			r.Get("/sections/{domain}/{section}", h.HandleCachedSection)

			r.Put("/notification-preferences/{category}", h.HandleSetPreference)
		})
	})

	return r
}
