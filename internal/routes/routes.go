package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-notifications/internal/handlers"
	"task-notifications/internal/middleware"
)

// SetupRoutes builds the router. A nil limiter disables rate limiting.
func SetupRoutes(limiter *middleware.RateLimiter) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task notifications API is running",
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	if limiter != nil {
		protectedRoutes.Use(middleware.RateLimit(limiter))
	}
	{
		// Notification endpoints
		protectedRoutes.GET("/notifications/:recipientId", handlers.ListNotifications)
		protectedRoutes.GET("/notifications/:recipientId/stats", handlers.GetNotificationStats)
		protectedRoutes.PATCH("/notifications/read-all", handlers.MarkAllNotificationsRead)
		protectedRoutes.PATCH("/notifications/:id/read", handlers.MarkNotificationRead)
		protectedRoutes.PATCH("/notifications/:id/archive", handlers.ArchiveNotification)

		// Task endpoints
		protectedRoutes.GET("/tasks", handlers.GetTasks)
		protectedRoutes.GET("/tasks/:id", handlers.GetTaskByID)
		protectedRoutes.POST("/tasks", handlers.CreateTask)
		protectedRoutes.PATCH("/tasks/:id/status", handlers.UpdateTaskStatus)
		protectedRoutes.GET("/tasks/:id/comments", handlers.GetComments)
		protectedRoutes.POST("/tasks/:id/comments", handlers.CreateComment)

		// Users endpoint
		protectedRoutes.GET("/users", handlers.GetAllUsers)
	}

	// The live channel authenticates with the same JWT but is exempt from
	// the per-request budget.
	ginRouter.GET("/ws", middleware.JWTAuthMiddleware(), handlers.WebSocketHandler)

	return ginRouter
}
