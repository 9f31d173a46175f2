// Package api provides the HTTP API for the media QC review server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/mediaqc-server/internal/ratelimit"
	"github.com/listenupapp/mediaqc-server/internal/sse"
)

// Options configures the HTTP surface.
type Options struct {
	Title          string
	Version        string
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	sseHandler *sse.Handler
	limiter    *ratelimit.KeyedRateLimiter
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, sseHandler *sse.Handler, limiter *ratelimit.KeyedRateLimiter, opts Options, logger *slog.Logger) *Server {
	if opts.Title == "" {
		opts.Title = "Media QC API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		services:   services,
		sseHandler: sseHandler,
		limiter:    limiter,
		router:     chi.NewRouter(),
		logger:     logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig(opts.Title, opts.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mostly for tests and OpenAPI dumps.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         int((12 * time.Hour).Seconds()),
	}))
	s.router.Use(middleware.Compress(5))
	if s.limiter != nil {
		s.router.Use(s.rateLimitMutations)
	}
}

func (s *Server) setupRoutes() {
	// Plain handlers: streaming and file serving bypass the envelope.
	s.router.Handle("/metrics", s.services.Metrics.Handler())
	s.router.Get("/media/{id}", s.handleServeMedia)
	s.router.Handle("/api/v1/events", s.sseHandler)

	s.registerHealthRoutes()
	s.registerFileRoutes()
	s.registerGroupingRoutes()
	s.registerQCRoutes()
}
