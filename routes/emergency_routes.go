package routes

import (
	handlers "telecare-sos/internal/handlers/shared"
	"telecare-sos/internal/middleware"
	"telecare-sos/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type EmergencyRoutesConfig struct {
	JWTSecret string
	// RequireAlertAuth rejects anonymous SOS alerts. Devices that have not
	// logged in can still raise an alert when it is false.
	RequireAlertAuth bool
	// Throttle guards self-test and contact writes. SOS intake is never
	// throttled. Nil disables it.
	Throttle gin.HandlerFunc
}

func SetupEmergencyRoutes(router *gin.RouterGroup, handler *handlers.EmergencyHandler, ws *websocket.Handler, cfg EmergencyRoutesConfig) {
	throttle := cfg.Throttle
	if throttle == nil {
		throttle = func(c *gin.Context) { c.Next() }
	}

	alertAuth := middleware.OptionalAuth(cfg.JWTSecret)
	if cfg.RequireAlertAuth {
		alertAuth = middleware.AuthRequired(cfg.JWTSecret)
	}

	emergency := router.Group("/emergency")
	{
		emergency.POST("/sos-alert", alertAuth, handler.SendSOSAlert)
		emergency.GET("/health", handler.Health)
		emergency.POST("/test", throttle, handler.TestSystem)
		emergency.GET("/contacts/:userId", middleware.OptionalAuth(cfg.JWTSecret), handler.GetContacts)

		contacts := emergency.Group("/contacts/:userId")
		contacts.Use(middleware.AuthRequired(cfg.JWTSecret), throttle)
		{
			contacts.PUT("", handler.UpsertContact)
			contacts.DELETE("/:number", handler.DeleteContact)
		}

		emergency.GET("/history/:userId", middleware.AuthRequired(cfg.JWTSecret), handler.AlertHistory)

		operators := emergency.Group("")
		operators.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.OperatorRequired())
		{
			operators.GET("/alerts", handler.ListActiveAlerts)
			operators.PUT("/alerts/:alertId/status", handler.UpdateAlertStatus)
			if ws != nil {
				operators.GET("/stream", ws.HandleWebSocket)
			}
		}
	}
}
