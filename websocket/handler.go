package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and registers it with the hub. The
// caller has already authenticated the user (JWT middleware).
func HandleWebSocket(c echo.Context, hub *Hub, userID primitive.ObjectID) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	hub.register <- client

	conn.WriteJSON(Notification{
		Type:    "connected",
		Message: "WebSocket connection established",
		UserID:  userID.Hex(),
	})

	// Drain the connection until it closes so the hub learns about
	// disconnects.
	go func() {
		defer func() {
			hub.unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	return nil
}
