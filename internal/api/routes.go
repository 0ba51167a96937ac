package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/announce/internal/metrics"
)

// RouterConfig holds the routing options of the admin server.
type RouterConfig struct {
	CORSOrigins    []string
	Orgs           *OrgContextProvider
	Health         *HealthChecker
	MetricsHandler http.Handler
}

// SetupRoutes configures all admin routes.
func SetupRoutes(h *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(metrics.HTTPMiddleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HandleHealth)
		r.Get("/health/ready", cfg.Health.HandleReadiness)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	orgs := cfg.Orgs
	if orgs == nil {
		orgs = NewOrgContextProvider(false, "")
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(orgs.RequireOrgMiddleware)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.HandleListCampaigns)
			r.Post("/", h.HandleCreateCampaign)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetCampaign)
				r.Put("/", h.HandleUpdateCampaign)
				r.Delete("/", h.HandleDeleteCampaign)

				r.Post("/send", h.HandleSendCampaign)
				r.Post("/schedule", h.HandleScheduleCampaign)
				r.Post("/cancel", h.HandleCancelCampaign)
				r.Post("/test", h.HandleSendTest)
				r.Get("/preview", h.HandlePreviewCampaign)

				r.Get("/stats", h.HandleCampaignStats)
				r.Get("/report", h.HandleCampaignReport)
				r.Get("/report.xlsx", h.HandleReportXLSX)
				r.Get("/report.csv", h.HandleReportCSV)
				r.Post("/report/archive", h.HandleArchiveReport)
				r.Get("/feedback", h.HandleCampaignFeedback)
			})
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.HandleListContacts)
			r.Post("/", h.HandleUpsertContact)
			r.Post("/import", h.HandleImportContacts)
			r.Get("/{id}", h.HandleGetContact)
		})
	})

	return r
}
