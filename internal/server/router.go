package server

import (
	"context"

	"github.com/abduss/crmassets/internal/config"
	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/logger"
	"github.com/abduss/crmassets/internal/metrics"
	"github.com/abduss/crmassets/internal/uploader"
	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ContainerLister is satisfied by *storage.MinIOBackend.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]string, error)
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	DB          Pinger
	Storage     ContainerLister
	Sessions    *uploader.Registry
	Diagnostics *diagnostics.Log
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	metrics.InitMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.Sessions != nil {
		registerUploadRoutes(api, deps)
	}
	if deps.Diagnostics != nil {
		registerDiagnosticsRoutes(api, fixedLog(deps.Diagnostics))
	}

	return router
}
