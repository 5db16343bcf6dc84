// Package api exposes the analysis engine over HTTP/JSON.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/config"
	"github.com/veriscope/authenticity-engine/internal/engine"
	"github.com/veriscope/authenticity-engine/internal/gateway"
	"github.com/veriscope/authenticity-engine/internal/monitoring"
	"github.com/veriscope/authenticity-engine/internal/provider"
	"github.com/veriscope/authenticity-engine/internal/store"
	"github.com/veriscope/authenticity-engine/pkg/mediavault"
)

// Server handles analysis requests. Resolver may be nil when no MediaVault
// service is configured; id-only requests are then rejected.
type Server struct {
	engine    *engine.Engine
	registry  *provider.Registry
	gateway   *gateway.Gateway
	store     store.Store
	resolver  mediavault.Client
	collector *monitoring.Collector
	cfg       config.ServerConfig
	log       *zap.Logger
}

// NewServer creates the HTTP server with all dependencies.
func NewServer(
	eng *engine.Engine,
	registry *provider.Registry,
	gw *gateway.Gateway,
	st store.Store,
	resolver mediavault.Client,
	collector *monitoring.Collector,
	cfg config.ServerConfig,
) *Server {
	return &Server{
		engine:    eng,
		registry:  registry,
		gateway:   gw,
		store:     st,
		resolver:  resolver,
		collector: collector,
		cfg:       cfg,
		log:       zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.cfg.RequestTimeoutSecs) * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/analyze", s.handleAnalyze)
	r.Get("/analyze", s.handleGetAnalysis)
	r.Get("/health", s.handleHealth)
	r.Get("/providers", s.handleProviders)
	r.Get("/metrics", s.handleMetrics)

	return r
}

// requestLogger logs one line per request after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
