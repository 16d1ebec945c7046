package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking statuses
const (
	BookingStatusRequested      = "requested"
	BookingStatusAccepted       = "accepted"
	BookingStatusDeclined       = "declined"
	BookingStatusPendingPayment = "pending_payment"
	BookingStatusPaid           = "paid"
	BookingStatusCancelled      = "cancelled"
	BookingStatusCompleted      = "completed"
)

// Cancellation actors
const (
	CancelledByClient = "client"
	CancelledByOwner  = "owner"
)

// PaymentData is the last gateway-reported payment snapshot folded into the
// booking. The booking status remains the source of truth; this is advisory.
type PaymentData struct {
	Gateway   string    `json:"gateway" bson:"gateway"`
	PaymentID string    `json:"paymentId" bson:"paymentId"`
	Status    string    `json:"status" bson:"status"`
	Amount    float64   `json:"amount,omitempty" bson:"amount,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Booking model
type Booking struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	PostID        primitive.ObjectID `json:"postId" bson:"postId"`
	ClientID      primitive.ObjectID `json:"clientId" bson:"clientId"`
	OwnerID       primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	Status        string             `json:"status" bson:"status"`
	StartDate     time.Time          `json:"startDate" bson:"startDate"`
	EndDate       time.Time          `json:"endDate" bson:"endDate"`
	GuestCount    int                `json:"guestCount" bson:"guestCount"`
	TotalAmount   float64            `json:"totalAmount" bson:"totalAmount"`
	Currency      string             `json:"currency" bson:"currency"`
	PenaltyAmount float64            `json:"penaltyAmount,omitempty" bson:"penaltyAmount,omitempty"`
	CancelledBy   string             `json:"cancelledBy,omitempty" bson:"cancelledBy,omitempty"`
	PaymentData   *PaymentData       `json:"paymentData,omitempty" bson:"paymentData,omitempty"`
	AcceptedAt    *time.Time         `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	PaidAt        *time.Time         `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	CancelledAt   *time.Time         `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CompletedAt   *time.Time         `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsTerminal reports whether no further status transition is permitted.
func (b *Booking) IsTerminal() bool {
	return IsTerminalStatus(b.Status)
}

// IsTerminalStatus reports whether the given status is terminal.
func IsTerminalStatus(status string) bool {
	switch status {
	case BookingStatusDeclined, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// BookingRequest model for creating a new booking
type BookingRequest struct {
	PostID     string    `json:"postId" validate:"required"`
	StartDate  time.Time `json:"startDate" validate:"required"`
	EndDate    time.Time `json:"endDate" validate:"required"`
	GuestCount int       `json:"guestCount" validate:"required,gt=0"`
}

// BookingRespondRequest model for the owner accepting or declining a request
type BookingRespondRequest struct {
	Accept  bool   `json:"accept"`
	Message string `json:"message,omitempty"`
}

// CheckoutRequest model for initiating payment on an accepted booking
type CheckoutRequest struct {
	Gateway string `json:"gateway" validate:"required,oneof=mercadopago mobbex"`
}

// CancelBookingRequest model for cancelling a booking
type CancelBookingRequest struct {
	CancelledBy string `json:"cancelledBy" validate:"required,oneof=client owner"`
}

// CancelBookingResult is returned to the caller of a cancel request.
type CancelBookingResult struct {
	Success           bool    `json:"success"`
	PenaltyAmount     float64 `json:"penaltyAmount"`
	DaysBeforeBooking int     `json:"daysBeforeBooking"`
}

// BookingStatusUpdate carries the fields written alongside a status
// transition. Timestamp pointers are only set on the transition that first
// stamps them, so each is written at most once.
type BookingStatusUpdate struct {
	PenaltyAmount *float64
	CancelledBy   string
	PaymentData   *PaymentData
	AcceptedAt    *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CompletedAt   *time.Time
}

// BookingResponse model
type BookingResponse struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Data    *Booking `json:"data,omitempty"`
}

// BookingsResponse model for multiple bookings
type BookingsResponse struct {
	Status  int       `json:"status"`
	Message string    `json:"message"`
	Data    []Booking `json:"data,omitempty"`
}
