package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthshop/clerk/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.POST("/chat", handler.Chat)
		v1.POST("/chat/stream", handler.ChatStream)

		v1.GET("/products/search", handler.SearchProducts)

		users := v1.Group("/users/:userID")
		{
			users.GET("/cart", handler.GetCart)
			users.POST("/cart/items", handler.AddCartItem)
			users.POST("/cart/pay", handler.PayCart)
			users.GET("/orders", handler.GetOrders)
		}
	}

	return router
}
