package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/andar-app/andar_backend/models"
)

// legalTransitions defines the booking status machine. The key is the current
// status, the value the set of statuses reachable from it.
var legalTransitions = map[string][]string{
	models.BookingStatusRequested: {
		models.BookingStatusAccepted,
		models.BookingStatusDeclined,
		models.BookingStatusCancelled,
	},
	models.BookingStatusAccepted: {
		models.BookingStatusPendingPayment,
	},
	models.BookingStatusPendingPayment: {
		models.BookingStatusPaid,
		models.BookingStatusRequested, // gateway rejected, reopen for retry
		models.BookingStatusCancelled,
	},
	models.BookingStatusPaid: {
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
	},
	models.BookingStatusDeclined:  {},
	models.BookingStatusCancelled: {},
	models.BookingStatusCompleted: {},
}

// CanTransition checks whether moving from one status to another is legal.
func CanTransition(from, to string) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// cancellableStatuses are the only statuses a cancel request is accepted
// from. Note that "accepted" is deliberately absent: a booking must reach a
// payment-bearing status, or still be in "requested", before it can be
// cancelled. Preserved as-is from the product rules.
var cancellableStatuses = map[string]bool{
	models.BookingStatusRequested:      true,
	models.BookingStatusPendingPayment: true,
	models.BookingStatusPaid:           true,
}

// casAttempts bounds the reload-and-retry loop around the conditional status
// write when a webhook and a cancel request race on the same booking.
const casAttempts = 3

// BookingStore is the persistence contract the state machine needs. The
// conditional update must be atomic with respect to other writers on the
// same booking id.
type BookingStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	Insert(ctx context.Context, booking *models.Booking) error
	// UpdateStatusCAS swaps the status only if the persisted status still
	// equals fromStatus, applying the extra fields in the same write. It
	// returns ErrStatusConflict when the precondition no longer holds.
	UpdateStatusCAS(ctx context.Context, id primitive.ObjectID, fromStatus, toStatus string, update models.BookingStatusUpdate) error
}

// PostStore is the read-only listing contract.
type PostStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
}

// Notifier delivers a notification at least once. Implementations must
// deduplicate on the given key so webhook redeliveries do not spam
// recipients. Delivery failures never roll back a status write.
type Notifier interface {
	Dispatch(ctx context.Context, notification models.Notification, dedupKey string) error
}

// CheckoutProvider creates a hosted payment page for a booking and returns
// its URL. Implemented by the MercadoPago and Mobbex services.
type CheckoutProvider interface {
	GatewayName() string
	CreateCheckout(ctx context.Context, booking *models.Booking) (string, error)
}

// PaymentOutcome reports what ApplyPaymentEvent did with a webhook delivery.
type PaymentOutcome struct {
	Applied    bool   // status transition performed
	Duplicate  bool   // same payment id and same resulting status as before
	Ignored    bool   // accepted but not applied (terminal or illegal target)
	FromStatus string
	ToStatus   string
	Reason     string
}

// BookingService owns the booking lifecycle: every status mutation in the
// system goes through one of its methods.
type BookingService struct {
	bookings BookingStore
	posts    PostStore
	notifier Notifier
}

// NewBookingService creates a new booking service.
func NewBookingService(bookings BookingStore, posts PostStore, notifier Notifier) *BookingService {
	return &BookingService{bookings: bookings, posts: posts, notifier: notifier}
}

// Create validates a booking intent against the post and inserts it in
// "requested" status.
func (s *BookingService) Create(ctx context.Context, clientID primitive.ObjectID, req *models.BookingRequest) (*models.Booking, error) {
	postID, err := primitive.ObjectIDFromHex(req.PostID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid post id", ErrInvalidInput)
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, fmt.Errorf("%w: startDate must be before endDate", ErrInvalidInput)
	}
	if req.GuestCount <= 0 {
		return nil, fmt.Errorf("%w: guestCount must be positive", ErrInvalidInput)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPublished {
		return nil, fmt.Errorf("%w: post is not published", ErrInvalidInput)
	}
	if post.OwnerID == clientID {
		return nil, fmt.Errorf("%w: cannot book your own post", ErrInvalidInput)
	}
	if req.GuestCount > post.MaxGuests {
		return nil, fmt.Errorf("%w: guestCount exceeds post capacity", ErrInvalidInput)
	}

	nights := int(req.EndDate.Sub(req.StartDate).Hours() / 24)
	if nights < 1 {
		nights = 1
	}

	now := time.Now()
	booking := &models.Booking{
		ID:          primitive.NewObjectID(),
		PostID:      post.ID,
		ClientID:    clientID,
		OwnerID:     post.OwnerID,
		Status:      models.BookingStatusRequested,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		GuestCount:  req.GuestCount,
		TotalAmount: roundCurrency(post.PricePerNight * float64(nights)),
		Currency:    post.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.bookings.Insert(ctx, booking); err != nil {
		return nil, err
	}

	s.dispatch(ctx, models.Notification{
		UserID:  booking.OwnerID,
		Type:    models.NotificationTypeBookingRequested,
		Title:   "New booking request",
		Message: fmt.Sprintf("You have a new booking request for %q", post.Title),
		Data:    bookingData(booking),
	}, dedupKey(booking.ID, models.NotificationTypeBookingRequested, booking.OwnerID, ""))

	return booking, nil
}

// Respond lets the post owner accept or decline a requested booking.
func (s *BookingService) Respond(ctx context.Context, bookingID, actorID primitive.ObjectID, accept bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the post owner can respond to a booking", ErrUnauthorized)
	}

	target := models.BookingStatusDeclined
	if accept {
		target = models.BookingStatusAccepted
	}
	if !CanTransition(booking.Status, target) {
		return nil, fmt.Errorf("%w: cannot move booking from %s to %s", ErrInvalidTransition, booking.Status, target)
	}

	update := models.BookingStatusUpdate{}
	if accept {
		now := time.Now()
		update.AcceptedAt = &now
	}
	if err := s.bookings.UpdateStatusCAS(ctx, booking.ID, booking.Status, target, update); err != nil {
		return nil, err
	}
	booking.Status = target

	notifType := models.NotificationTypeBookingDeclined
	title := "Booking declined"
	message := "The owner declined your booking request"
	if accept {
		notifType = models.NotificationTypeBookingAccepted
		title = "Booking accepted"
		message = "Your booking request was accepted. You can now proceed to payment."
	}
	s.dispatch(ctx, models.Notification{
		UserID:  booking.ClientID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    bookingData(booking),
	}, dedupKey(booking.ID, notifType, booking.ClientID, ""))

	return booking, nil
}

// CreateCheckout creates a hosted payment page with the given gateway and
// moves the booking from accepted to pending_payment. The checkout is created
// before the status write; an orphaned checkout page is harmless, a paid
// booking stuck in accepted is not.
func (s *BookingService) CreateCheckout(ctx context.Context, bookingID, actorID primitive.ObjectID, gateway CheckoutProvider) (string, *models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", nil, err
	}
	if booking.ClientID != actorID {
		return "", nil, fmt.Errorf("%w: only the booking client can start payment", ErrUnauthorized)
	}
	if !CanTransition(booking.Status, models.BookingStatusPendingPayment) {
		return "", nil, fmt.Errorf("%w: cannot start payment from status %s", ErrInvalidTransition, booking.Status)
	}

	checkoutURL, err := gateway.CreateCheckout(ctx, booking)
	if err != nil {
		return "", nil, err
	}

	update := models.BookingStatusUpdate{
		PaymentData: &models.PaymentData{
			Gateway:   gateway.GatewayName(),
			Status:    models.PaymentStatusPending,
			UpdatedAt: time.Now(),
		},
	}
	if err := s.bookings.UpdateStatusCAS(ctx, booking.ID, booking.Status, models.BookingStatusPendingPayment, update); err != nil {
		return "", nil, err
	}
	booking.Status = models.BookingStatusPendingPayment
	booking.PaymentData = update.PaymentData

	s.dispatch(ctx, models.Notification{
		UserID:  booking.ClientID,
		Type:    models.NotificationTypePaymentPending,
		Title:   "Complete your payment",
		Message: fmt.Sprintf("Your booking is reserved. Complete the payment of %.2f %s to confirm it.", booking.TotalAmount, booking.Currency),
		Data:    bookingData(booking),
	}, dedupKey(booking.ID, models.NotificationTypePaymentPending, booking.ClientID, ""))

	return checkoutURL, booking, nil
}

// Complete moves a paid booking to completed once the stay has passed (or the
// owner closes it manually).
func (s *BookingService) Complete(ctx context.Context, bookingID, actorID primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the post owner can complete a booking", ErrUnauthorized)
	}
	if !CanTransition(booking.Status, models.BookingStatusCompleted) {
		return nil, fmt.Errorf("%w: cannot complete booking from status %s", ErrInvalidTransition, booking.Status)
	}

	now := time.Now()
	update := models.BookingStatusUpdate{CompletedAt: &now}
	if err := s.bookings.UpdateStatusCAS(ctx, booking.ID, booking.Status, models.BookingStatusCompleted, update); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusCompleted
	booking.CompletedAt = &now

	s.dispatch(ctx, models.Notification{
		UserID:  booking.ClientID,
		Type:    models.NotificationTypeBookingCompleted,
		Title:   "Stay completed",
		Message: "Your booking was marked as completed. We hope you enjoyed your stay!",
		Data:    bookingData(booking),
	}, dedupKey(booking.ID, models.NotificationTypeBookingCompleted, booking.ClientID, ""))

	return booking, nil
}

// RequestCancel cancels a booking on behalf of the client or the owner.
// Client cancellations are charged the post's policy penalty; owner
// cancellations are always free.
func (s *BookingService) RequestCancel(ctx context.Context, bookingID, actorID primitive.ObjectID, cancelledBy string) (*models.CancelBookingResult, error) {
	if cancelledBy != models.CancelledByClient && cancelledBy != models.CancelledByOwner {
		return nil, fmt.Errorf("%w: cancelledBy must be %q or %q", ErrInvalidInput, models.CancelledByClient, models.CancelledByOwner)
	}

	var booking *models.Booking
	var penalty PenaltyResult

	for attempt := 0; attempt < casAttempts; attempt++ {
		var err error
		booking, err = s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		switch cancelledBy {
		case models.CancelledByClient:
			if booking.ClientID != actorID {
				return nil, fmt.Errorf("%w: booking belongs to another client", ErrUnauthorized)
			}
		case models.CancelledByOwner:
			if booking.OwnerID != actorID {
				return nil, fmt.Errorf("%w: booking belongs to another owner", ErrUnauthorized)
			}
		}

		if !cancellableStatuses[booking.Status] {
			return nil, fmt.Errorf("%w: booking in status %s cannot be cancelled", ErrInvalidTransition, booking.Status)
		}

		penalty = PenaltyResult{}
		if cancelledBy == models.CancelledByClient {
			post, err := s.posts.GetByID(ctx, booking.PostID)
			if err != nil {
				return nil, err
			}
			penalty = ComputePenalty(post.CancellationPolicies, booking.TotalAmount, booking.StartDate, time.Now())
		}

		now := time.Now()
		update := models.BookingStatusUpdate{
			PenaltyAmount: &penalty.PenaltyAmount,
			CancelledBy:   cancelledBy,
			CancelledAt:   &now,
		}
		err = s.bookings.UpdateStatusCAS(ctx, booking.ID, booking.Status, models.BookingStatusCancelled, update)
		if err == nil {
			booking.CancelledAt = &now
			break
		}
		if !errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		if attempt == casAttempts-1 {
			return nil, err
		}
		// Lost the race, reload and re-validate from the fresh status.
	}

	booking.Status = models.BookingStatusCancelled
	booking.PenaltyAmount = penalty.PenaltyAmount
	booking.CancelledBy = cancelledBy

	s.notifyCancellation(ctx, booking, cancelledBy, penalty.PenaltyAmount)

	return &models.CancelBookingResult{
		Success:           true,
		PenaltyAmount:     penalty.PenaltyAmount,
		DaysBeforeBooking: penalty.DaysBeforeBooking,
	}, nil
}

// ApplyPaymentEvent reconciles a normalized gateway webhook against the
// booking. Terminal bookings absorb events without changing status, and the
// same gateway payment id resolving to the same status is a no-op, so
// webhook redeliveries are safe.
func (s *BookingService) ApplyPaymentEvent(ctx context.Context, event *models.PaymentEvent) (*PaymentOutcome, error) {
	bookingID, err := primitive.ObjectIDFromHex(event.BookingReference)
	if err != nil {
		return nil, fmt.Errorf("%w: booking reference %q", ErrMalformedPayload, event.BookingReference)
	}

	target, ok := canonicalTarget(event.CanonicalStatus)
	if !ok {
		return nil, fmt.Errorf("%w: canonical status %q", ErrInvalidInput, event.CanonicalStatus)
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		booking, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		outcome := &PaymentOutcome{FromStatus: booking.Status, ToStatus: target}

		if booking.IsTerminal() {
			log.Printf("payment event %s/%s ignored: booking %s already %s",
				event.Gateway, event.GatewayPaymentID, booking.ID.Hex(), booking.Status)
			outcome.Ignored = true
			outcome.Reason = "booking already finalized"
			return outcome, nil
		}

		if booking.PaymentData != nil &&
			booking.PaymentData.PaymentID == event.GatewayPaymentID &&
			booking.Status == target {
			outcome.Duplicate = true
			outcome.Reason = "payment already applied"
			return outcome, nil
		}

		if booking.Status == target {
			outcome.Reason = "status already up to date"
			return outcome, nil
		}

		if !CanTransition(booking.Status, target) {
			log.Printf("payment event %s/%s ignored: no transition %s -> %s for booking %s",
				event.Gateway, event.GatewayPaymentID, booking.Status, target, booking.ID.Hex())
			outcome.Ignored = true
			outcome.Reason = fmt.Sprintf("no transition from %s to %s", booking.Status, target)
			return outcome, nil
		}

		update := models.BookingStatusUpdate{
			PaymentData: &models.PaymentData{
				Gateway:   event.Gateway,
				PaymentID: event.GatewayPaymentID,
				Status:    event.GatewayStatus,
				Amount:    event.Amount,
				UpdatedAt: time.Now(),
			},
		}
		if target == models.BookingStatusPaid {
			now := time.Now()
			update.PaidAt = &now
		}

		err = s.bookings.UpdateStatusCAS(ctx, booking.ID, booking.Status, target, update)
		if errors.Is(err, ErrStatusConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		booking.Status = target
		booking.PaymentData = update.PaymentData
		outcome.Applied = true
		s.notifyPaymentEvent(ctx, booking, event)
		return outcome, nil
	}

	return nil, ErrStatusConflict
}

// canonicalTarget maps a canonical payment status onto the booking status it
// drives towards. Rejected payments reopen the booking for retry, they never
// cancel it.
func canonicalTarget(canonical string) (string, bool) {
	switch canonical {
	case models.PaymentStatusApproved:
		return models.BookingStatusPaid, true
	case models.PaymentStatusPending:
		return models.BookingStatusPendingPayment, true
	case models.PaymentStatusRejected:
		return models.BookingStatusRequested, true
	}
	return "", false
}

func (s *BookingService) notifyPaymentEvent(ctx context.Context, booking *models.Booking, event *models.PaymentEvent) {
	switch event.CanonicalStatus {
	case models.PaymentStatusApproved:
		s.dispatch(ctx, models.Notification{
			UserID:  booking.OwnerID,
			Type:    models.NotificationTypePaymentCompleted,
			Title:   "Payment received",
			Message: fmt.Sprintf("A payment of %.2f %s was received for a booking on your post.", booking.TotalAmount, booking.Currency),
			Data:    paymentData(booking, event),
		}, dedupKey(booking.ID, models.NotificationTypePaymentCompleted, booking.OwnerID, event.GatewayPaymentID))

		s.dispatch(ctx, models.Notification{
			UserID:  booking.ClientID,
			Type:    models.NotificationTypePaymentCompleted,
			Title:   "Payment confirmed",
			Message: "Your payment was approved. The booking is confirmed.",
			Data:    paymentData(booking, event),
		}, dedupKey(booking.ID, models.NotificationTypePaymentCompleted, booking.ClientID, event.GatewayPaymentID))

	case models.PaymentStatusRejected:
		s.dispatch(ctx, models.Notification{
			UserID:  booking.ClientID,
			Type:    models.NotificationTypePaymentFailed,
			Title:   "Payment failed",
			Message: "Your payment was not completed. You can retry the payment from your booking.",
			Data:    paymentData(booking, event),
		}, dedupKey(booking.ID, models.NotificationTypePaymentFailed, booking.ClientID, event.GatewayPaymentID))
	}
}

func (s *BookingService) notifyCancellation(ctx context.Context, booking *models.Booking, cancelledBy string, penalty float64) {
	counterparty := booking.OwnerID
	canceller := booking.ClientID
	counterpartyMsg := "The client cancelled the booking on your post."
	if cancelledBy == models.CancelledByOwner {
		counterparty = booking.ClientID
		canceller = booking.OwnerID
		counterpartyMsg = "The owner cancelled your booking. No penalty applies."
	}

	s.dispatch(ctx, models.Notification{
		UserID:  counterparty,
		Type:    models.NotificationTypeBookingCancelled,
		Title:   "Booking cancelled",
		Message: counterpartyMsg,
		Data:    bookingData(booking),
	}, dedupKey(booking.ID, models.NotificationTypeBookingCancelled, counterparty, ""))

	confirmation := "Your booking was cancelled."
	if penalty > 0 {
		confirmation = fmt.Sprintf("Your booking was cancelled. A penalty of %.2f %s applies.", penalty, booking.Currency)
	}
	s.dispatch(ctx, models.Notification{
		UserID:  canceller,
		Type:    models.NotificationTypeCancelConfirmed,
		Title:   "Cancellation confirmed",
		Message: confirmation,
		Data:    bookingData(booking),
	}, dedupKey(booking.ID, models.NotificationTypeCancelConfirmed, canceller, ""))
}

// dispatch fires a notification and logs the failure. The status write is the
// durable fact; notification delivery is best-effort.
func (s *BookingService) dispatch(ctx context.Context, n models.Notification, key string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n, key); err != nil {
		log.Printf("Failed to dispatch %s notification for user %s: %v", n.Type, n.UserID.Hex(), err)
	}
}

func dedupKey(bookingID primitive.ObjectID, notifType string, recipient primitive.ObjectID, paymentID string) string {
	key := fmt.Sprintf("%s:%s:%s", bookingID.Hex(), notifType, recipient.Hex())
	if paymentID != "" {
		key += ":" + paymentID
	}
	return key
}

func bookingData(b *models.Booking) map[string]interface{} {
	return map[string]interface{}{
		"bookingId": b.ID.Hex(),
		"postId":    b.PostID.Hex(),
		"status":    b.Status,
	}
}

func paymentData(b *models.Booking, e *models.PaymentEvent) map[string]interface{} {
	data := bookingData(b)
	data["gateway"] = e.Gateway
	data["paymentId"] = e.GatewayPaymentID
	data["gatewayStatus"] = e.GatewayStatus
	return data
}
