package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nimbusops/incidentwatch/internal/config"
	"github.com/nimbusops/incidentwatch/internal/detection"
	"github.com/nimbusops/incidentwatch/internal/incidents"
	"github.com/nimbusops/incidentwatch/internal/metrics"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, engine *detection.Engine, source metrics.Source, store incidents.Store) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		handlers: &Handlers{
			engine:     engine,
			source:     source,
			store:      store,
			resourceID: cfg.Resource.ID,
			lookback:   cfg.Detection.LookbackMinutes,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Metric passthrough endpoints
		r.Get("/metrics/{kind}/{durationMinutes}", s.handlers.GetMetrics)

		// Incident detection and retrieval
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", s.handlers.ListIncidents)
			r.Get("/detect", s.handlers.DetectIncidents)
		})

		// Overview/stats
		r.Get("/stats", s.handlers.GetStats)
	})
}

// Router returns the chi router
func (s *Server) Router() http.Handler {
	return s.router
}
