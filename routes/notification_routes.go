package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/controllers"
	"github.com/andar-app/andar_backend/middleware"
)

// RegisterNotificationRoutes registers all notification-related routes
func RegisterNotificationRoutes(e *echo.Echo, db *mongo.Client) {
	notificationController := controllers.NewNotificationController(db)

	notificationGroup := e.Group("/api/notifications")
	notificationGroup.Use(middleware.JWTMiddleware())

	notificationGroup.GET("", notificationController.GetUserNotifications)
	notificationGroup.PUT("/:id/read", notificationController.MarkNotificationRead)

	// FCM token update endpoint (requires authentication)
	authGroup := e.Group("/api")
	authGroup.Use(middleware.JWTMiddleware())
	authGroup.POST("/users/fcm-token", notificationController.UpdateFCMToken)
}
