package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/controllers"
	"github.com/andar-app/andar_backend/middleware"
	"github.com/andar-app/andar_backend/websocket"
)

// RegisterBookingRoutes registers all booking lifecycle routes
func RegisterBookingRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) {
	bookingController := controllers.NewBookingController(db, redisClient, hub)

	bookingGroup := e.Group("/api/bookings")
	bookingGroup.Use(middleware.JWTMiddleware())

	bookingGroup.POST("", bookingController.CreateBooking)
	bookingGroup.GET("/user", bookingController.GetUserBookings)
	bookingGroup.GET("/owner", bookingController.GetOwnerBookings)
	bookingGroup.GET("/:id", bookingController.GetBooking)
	bookingGroup.PUT("/:id/respond", bookingController.RespondBooking)
	bookingGroup.POST("/:id/checkout", bookingController.CreateCheckout)
	bookingGroup.POST("/:id/cancel", bookingController.CancelBooking)
	bookingGroup.POST("/:id/complete", bookingController.CompleteBooking)
}
