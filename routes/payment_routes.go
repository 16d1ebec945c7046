package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/controllers"
	"github.com/andar-app/andar_backend/websocket"
)

// RegisterPaymentRoutes registers the gateway webhook endpoints. These are
// unauthenticated: gateways do not carry our JWTs, and every delivery is
// verified against gateway state or validated payload structure instead.
func RegisterPaymentRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) {
	paymentController := controllers.NewPaymentController(db, redisClient, hub)

	paymentGroup := e.Group("/api/payments")
	paymentGroup.POST("/mercadopago/webhook", paymentController.HandleMercadoPagoWebhook)
	paymentGroup.POST("/mobbex/webhook", paymentController.HandleMobbexWebhook)
}
