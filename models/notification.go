package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types, keyed to the booking transition that produced them
const (
	NotificationTypeBookingRequested = "booking_requested"
	NotificationTypeBookingAccepted  = "booking_accepted"
	NotificationTypeBookingDeclined  = "booking_declined"
	NotificationTypePaymentPending   = "payment_pending"
	NotificationTypePaymentCompleted = "payment_completed"
	NotificationTypePaymentFailed    = "payment_failed"
	NotificationTypeBookingCancelled = "booking_cancelled"
	NotificationTypeCancelConfirmed  = "cancel_confirmed"
	NotificationTypeBookingCompleted = "booking_completed"
)

// Notification model
type Notification struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`       // The user who receives the notification
	Title     string             `json:"title" bson:"title"`         // Notification title
	Message   string             `json:"message" bson:"message"`     // Notification message
	Type      string             `json:"type" bson:"type"`           // One of the NotificationType constants
	Data      interface{}        `json:"data,omitempty" bson:"data"` // Optional additional data
	IsRead    bool               `json:"isRead" bson:"isRead"`       // Whether the notification has been read
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"` // Timestamp of notification creation
}

// NotificationsResponse model for listing a user's notifications
type NotificationsResponse struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Data    []Notification `json:"data,omitempty"`
}
