package routes

import (
	"net/http"

	handlers "telecare-sos/internal/handlers/shared"
	"telecare-sos/internal/middleware"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
	"telecare-sos/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Emergency      EmergencyRoutesConfig
	AllowedOrigins []string
	TrustedProxies []string
	Version        string
}

// NewRouter builds the backend engine with the global middleware chain, the
// emergency API under /api and the Prometheus endpoint.
func NewRouter(cfg RouterConfig, handler *handlers.EmergencyHandler, ws *websocket.Handler, m *metrics.Metrics, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}

	router := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.WithError(err).Warn("Ignoring invalid trusted proxies")
		}
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	api := router.Group("/api")
	SetupEmergencyRoutes(api, handler, ws, cfg.Emergency)

	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.Version,
		})
	})

	return router
}
