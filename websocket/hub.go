package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID primitive.ObjectID
	Conn   *websocket.Conn
}

// Hub maintains the set of active clients keyed by user id
type Hub struct {
	clients    map[primitive.ObjectID]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.clients[client.UserID]; ok && existing == client {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			client.Conn.Close()
		}
	}
}

// SendToUser delivers a notification to the user's open connection, if any.
func (h *Hub) SendToUser(userID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID.Hex())
	}

	notification.UserID = userID.Hex()
	return client.Conn.WriteJSON(notification)
}
