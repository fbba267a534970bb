package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xgaming/assistant-relay/services/relay/handlers"
)

// SetupRoutes wires the relay's HTTP surface onto the router.
func SetupRoutes(router *gin.Engine, chat *handlers.ChatHandler) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", chat.HandleChat)
	}
}
