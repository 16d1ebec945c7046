package routes

import (
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/middleware"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/websocket"
)

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) {
	RegisterPostRoutes(e, db)
	RegisterBookingRoutes(e, db, redisClient, hub)
	RegisterPaymentRoutes(e, db, redisClient, hub)
	RegisterNotificationRoutes(e, db)
	RegisterAdminRoutes(e, db)

	// Real-time notification stream
	wsGroup := e.Group("/api/ws")
	wsGroup.Use(middleware.JWTMiddleware())
	wsGroup.GET("", func(c echo.Context) error {
		claims := middleware.GetUserFromToken(c)
		if claims == nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Unauthorized",
			})
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid user ID in token",
			})
		}
		return websocket.HandleWebSocket(c, hub, userID)
	})
}
