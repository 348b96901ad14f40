// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/backend"
	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/howard-nolan/claude-gateway/internal/credentials"
	"github.com/howard-nolan/claude-gateway/internal/logging"
	"github.com/howard-nolan/claude-gateway/internal/metrics"
	"github.com/howard-nolan/claude-gateway/internal/router"
	"github.com/howard-nolan/claude-gateway/internal/usage"
)

// Server holds the HTTP router and all dependencies that handlers need:
// the static config, the mutable runtime/favorites stores, the backend
// registry, the usage tracker, the OAuth credential manager, the metrics
// collector, and the log ring buffer.
type Server struct {
	router chi.Router

	cfg       *config.Config
	runtime   *config.RuntimeStore
	favorites *config.FavoritesStore
	registry  *backend.Registry
	tracker   *usage.Tracker
	creds     *credentials.Manager
	collector *metrics.Collector
	logBuffer *logging.Buffer
	logger    *zap.Logger
}

// Deps bundles every dependency New needs to build a Server.
type Deps struct {
	Config    *config.Config
	Runtime   *config.RuntimeStore
	Favorites *config.FavoritesStore
	Registry  *backend.Registry
	Tracker   *usage.Tracker
	Creds     *credentials.Manager
	Collector *metrics.Collector
	LogBuffer *logging.Buffer
	Logger    *zap.Logger
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		runtime:   d.Runtime,
		favorites: d.Favorites,
		registry:  d.Registry,
		tracker:   d.Tracker,
		creds:     d.Creds,
		collector: d.Collector,
		logBuffer: d.LogBuffer,
		logger:    d.Logger.With(zap.String("component", "server")),
	}
	s.routes()
	return s
}

// availability derives the current backend-availability facts from the
// static config on every request, since config doesn't change at runtime
// (only RuntimeConfig does).
func (s *Server) availability() router.Availability {
	return router.NewAvailability(s.cfg)
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.withMetrics)
	r.Use(s.authenticate)

	r.Get("/health", s.handleHealth)

	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/messages/count_tokens", s.handleCountTokens)

	r.Get("/config", s.handleGetConfig)
	r.Post("/config", s.handlePostConfig)

	r.Get("/favorites", s.handleListFavorites)
	r.Post("/favorites", s.handleAddFavorite)
	r.Delete("/favorites/{index}", s.handleRemoveFavorite)

	r.Get("/logs", s.handleGetLogs)
	r.Post("/logs/clear", s.handleClearLogs)

	r.Get("/api/usage/stats", s.handleUsageStats)
	r.Post("/api/usage/reset", s.handleUsageReset)

	r.Handle("/metrics", promhttp.HandlerFor(s.collector.Registry, promhttp.HandlerOpts{}))

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface. Every incoming
// request flows through this method, and we just delegate to chi's router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
