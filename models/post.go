package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post statuses
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// CancellationPolicy defines a penalty window on a post: cancelling with
// daysQuantity or fewer days left before the stay starts costs
// penaltyPercentage of the booking total.
type CancellationPolicy struct {
	DaysQuantity      int     `json:"daysQuantity" bson:"daysQuantity" validate:"gte=0"`
	PenaltyPercentage float64 `json:"penaltyPercentage" bson:"penaltyPercentage" validate:"gte=0,lte=100"`
}

// Post model for a published stay/tour listing
type Post struct {
	ID                   primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID              primitive.ObjectID   `json:"ownerId" bson:"ownerId"`
	Title                string               `json:"title" bson:"title"`
	Description          string               `json:"description,omitempty" bson:"description,omitempty"`
	Location             string               `json:"location,omitempty" bson:"location,omitempty"`
	PricePerNight        float64              `json:"pricePerNight" bson:"pricePerNight"`
	Currency             string               `json:"currency" bson:"currency"`
	MaxGuests            int                  `json:"maxGuests" bson:"maxGuests"`
	Images               []string             `json:"images,omitempty" bson:"images,omitempty"`
	Status               string               `json:"status" bson:"status"`
	CancellationPolicies []CancellationPolicy `json:"cancellationPolicies,omitempty" bson:"cancellationPolicies,omitempty"`
	CreatedAt            time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// PostRequest model for creating or updating a post
type PostRequest struct {
	Title                string               `json:"title" validate:"required"`
	Description          string               `json:"description,omitempty"`
	Location             string               `json:"location,omitempty"`
	PricePerNight        float64              `json:"pricePerNight" validate:"required,gt=0"`
	Currency             string               `json:"currency" validate:"required,len=3"`
	MaxGuests            int                  `json:"maxGuests" validate:"required,gt=0"`
	Images               []string             `json:"images,omitempty"`
	CancellationPolicies []CancellationPolicy `json:"cancellationPolicies,omitempty" validate:"dive"`
}

// PostResponse model for post responses
type PostResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    *Post  `json:"data,omitempty"`
}

// PostsResponse model for multiple post responses
type PostsResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    []Post `json:"data,omitempty"`
}
