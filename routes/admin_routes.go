package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/controllers"
	"github.com/andar-app/andar_backend/middleware"
)

// RegisterAdminRoutes registers admin-only configuration routes
func RegisterAdminRoutes(e *echo.Echo, db *mongo.Client) {
	adminSettingsController := controllers.NewAdminSettingsController(db)

	adminGroup := e.Group("/api/admin")
	adminGroup.Use(middleware.JWTMiddleware())

	adminGroup.GET("/settings/payments", adminSettingsController.GetPaymentSettings)
	adminGroup.PUT("/settings/payments", adminSettingsController.UpdatePaymentSettings)
}
