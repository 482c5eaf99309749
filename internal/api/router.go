package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rohit/contact-ingest-worker/internal/api/handlers"
	"github.com/rohit/contact-ingest-worker/internal/api/middleware"
	"github.com/rohit/contact-ingest-worker/internal/metrics"
	"github.com/rs/zerolog"
)

// Router holds the ops-only HTTP surface: health/readiness/liveness probes
// and the Prometheus scrape endpoint. There is no REST surface for
// reviewing or editing jobs — that stays inside the worker.
type Router struct {
	engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter builds the ops HTTP surface. metricsEnabled == false omits the
// /metrics route entirely; the caller decides whether to start the server.
func NewRouter(db *sqlx.DB, metricsCollector *metrics.Collector, logger zerolog.Logger, metricsEnabled bool) *Router {
	engine := gin.New()

	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.Logger(logger))
	if metricsCollector != nil {
		engine.Use(middleware.Metrics(metricsCollector))
	}

	healthHandler := handlers.NewHealthHandler(db)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/live", healthHandler.Live)

	if metricsEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return &Router{engine: engine, logger: logger}
}

// Engine returns the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
