package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. Authentication and session handling live with the identity
// provider; this record is what the marketplace needs to address bookings
// and notifications.
type User struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email     string             `json:"email" bson:"email"`
	FullName  string             `json:"fullName" bson:"fullName"`
	UserType  string             `json:"userType" bson:"userType"` // "client" or "owner"
	Phone     string             `json:"phone,omitempty" bson:"phone,omitempty"`
	FCMToken  string             `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
