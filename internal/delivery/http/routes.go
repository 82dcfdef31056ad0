package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/recipebox/backend/config"
	"github.com/recipebox/backend/pkg/logger"
)

// SetupRouter creates and configures the Gin router. A nil gatherer serves
// the default prometheus registry on /metrics.
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log = logger.OrNop(log)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	if cfg.RateLimit.PerIP > 0 {
		v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst))
	}
	v1.Use(BodyLimitMiddleware(cfg.Server.MaxUploadBytes))
	{
		imports := v1.Group("/imports")
		{
			imports.POST("/url", handler.ImportURL)
			imports.POST("/text", handler.ImportText)
			imports.POST("/archive", handler.ImportArchive)
		}

		v1.POST("/ingredients/match", handler.MatchIngredients)

		recipes := v1.Group("/recipes")
		{
			recipes.POST("", handler.SaveRecipe)
			recipes.GET("/:id", handler.GetRecipe)
		}
	}

	return router
}
