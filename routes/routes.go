package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusrank/profadvisor/handlers"
	"github.com/campusrank/profadvisor/middleware"
	"github.com/campusrank/profadvisor/rag"
)

// SetupRoutes registers every endpoint of the service. The chat surfaces
// live under /v1 behind optional bearer auth; health and metrics are open.
func SetupRoutes(router *gin.Engine, pipeline *rag.Pipeline, apiKey string) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(apiKey))
	{
		v1.POST("/chat", handlers.HandleChat(pipeline))
		v1.POST("/chat/stream", handlers.HandleChatStream(pipeline))
		v1.GET("/chat/ws", handlers.HandleChatWebSocket(pipeline))
	}
}
