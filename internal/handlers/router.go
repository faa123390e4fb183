package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kosarica/allocation-service/internal/middleware"
)

// RouterConfig holds the transport settings of the HTTP API
type RouterConfig struct {
	InternalAPIKey    string
	RequestsPerSecond float64
	Burst             int
	Logger            *zerolog.Logger
}

// NewRouter registers every route. Call InitAllocator first.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.Logger != nil {
		router.Use(middleware.RequestLogger(cfg.Logger))
	}

	public := router.Group("/")
	public.Use(middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(middleware.DefaultRateLimiterConfig())))
	{
		public.GET("/health", HealthCheck)
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(cfg.RequestsPerSecond, cfg.Burst))
	{
		internal.GET("/health", HealthCheck)
		internal.POST("/allocate", Allocate)
		internal.GET("/scenarios", ListScenarios)
		internal.GET("/scenarios/:name", GetScenario)
	}

	return router
}
