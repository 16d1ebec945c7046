package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/andar-app/andar_backend/models"
)

type fakeBookingStore struct {
	bookings     map[primitive.ObjectID]*models.Booking
	casConflicts int // number of CAS calls to fail with ErrStatusConflict
	casWrites    int
}

func newFakeBookingStore(bookings ...*models.Booking) *fakeBookingStore {
	store := &fakeBookingStore{bookings: make(map[primitive.ObjectID]*models.Booking)}
	for _, b := range bookings {
		store.bookings[b.ID] = b
	}
	return store
}

func (s *fakeBookingStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *fakeBookingStore) Insert(_ context.Context, booking *models.Booking) error {
	copied := *booking
	s.bookings[booking.ID] = &copied
	return nil
}

func (s *fakeBookingStore) UpdateStatusCAS(_ context.Context, id primitive.ObjectID, fromStatus, toStatus string, update models.BookingStatusUpdate) error {
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if s.casConflicts > 0 {
		s.casConflicts--
		return ErrStatusConflict
	}
	if b.Status != fromStatus {
		return ErrStatusConflict
	}
	b.Status = toStatus
	b.UpdatedAt = time.Now()
	if update.PenaltyAmount != nil {
		b.PenaltyAmount = *update.PenaltyAmount
	}
	if update.CancelledBy != "" {
		b.CancelledBy = update.CancelledBy
	}
	if update.PaymentData != nil {
		b.PaymentData = update.PaymentData
	}
	if update.AcceptedAt != nil {
		b.AcceptedAt = update.AcceptedAt
	}
	if update.PaidAt != nil {
		b.PaidAt = update.PaidAt
	}
	if update.CancelledAt != nil {
		b.CancelledAt = update.CancelledAt
	}
	if update.CompletedAt != nil {
		b.CompletedAt = update.CompletedAt
	}
	s.casWrites++
	return nil
}

type fakePostStore struct {
	posts map[primitive.ObjectID]*models.Post
}

func newFakePostStore(posts ...*models.Post) *fakePostStore {
	store := &fakePostStore{posts: make(map[primitive.ObjectID]*models.Post)}
	for _, p := range posts {
		store.posts[p.ID] = p
	}
	return store
}

func (s *fakePostStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

type dispatched struct {
	notification models.Notification
	key          string
}

type fakeNotifier struct {
	sent []dispatched
}

func (n *fakeNotifier) Dispatch(_ context.Context, notification models.Notification, key string) error {
	n.sent = append(n.sent, dispatched{notification: notification, key: key})
	return nil
}

func (n *fakeNotifier) sentTypes() []string {
	types := make([]string, 0, len(n.sent))
	for _, d := range n.sent {
		types = append(types, d.notification.Type)
	}
	return types
}

type fakeGateway struct {
	name string
	url  string
	err  error
}

func (g *fakeGateway) GatewayName() string { return g.name }

func (g *fakeGateway) CreateCheckout(_ context.Context, _ *models.Booking) (string, error) {
	return g.url, g.err
}

func testPost(owner primitive.ObjectID) *models.Post {
	return &models.Post{
		ID:            primitive.NewObjectID(),
		OwnerID:       owner,
		Title:         "Cabin by the lake",
		PricePerNight: 100,
		Currency:      "ARS",
		MaxGuests:     4,
		Status:        models.PostStatusPublished,
		CancellationPolicies: []models.CancellationPolicy{
			{DaysQuantity: 7, PenaltyPercentage: 50},
			{DaysQuantity: 3, PenaltyPercentage: 20},
		},
	}
}

func testBooking(post *models.Post, client primitive.ObjectID, status string) *models.Booking {
	return &models.Booking{
		ID:          primitive.NewObjectID(),
		PostID:      post.ID,
		ClientID:    client,
		OwnerID:     post.OwnerID,
		Status:      status,
		StartDate:   time.Now().AddDate(0, 0, 5),
		EndDate:     time.Now().AddDate(0, 0, 7),
		GuestCount:  2,
		TotalAmount: 1000,
		Currency:    "ARS",
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.BookingStatusRequested, models.BookingStatusAccepted, true},
		{models.BookingStatusRequested, models.BookingStatusDeclined, true},
		{models.BookingStatusRequested, models.BookingStatusCancelled, true},
		{models.BookingStatusRequested, models.BookingStatusPaid, false},
		{models.BookingStatusAccepted, models.BookingStatusPendingPayment, true},
		{models.BookingStatusAccepted, models.BookingStatusCancelled, false},
		{models.BookingStatusPendingPayment, models.BookingStatusPaid, true},
		{models.BookingStatusPendingPayment, models.BookingStatusRequested, true},
		{models.BookingStatusPendingPayment, models.BookingStatusCancelled, true},
		{models.BookingStatusPaid, models.BookingStatusCompleted, true},
		{models.BookingStatusPaid, models.BookingStatusCancelled, true},
		{models.BookingStatusPaid, models.BookingStatusPendingPayment, false},
		{models.BookingStatusDeclined, models.BookingStatusRequested, false},
		{models.BookingStatusCancelled, models.BookingStatusPaid, false},
		{models.BookingStatusCompleted, models.BookingStatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)
	draft := testPost(owner)
	draft.Status = models.PostStatusDraft

	start := time.Now().AddDate(0, 0, 10)
	end := start.AddDate(0, 0, 2)

	tests := []struct {
		name   string
		client primitive.ObjectID
		req    models.BookingRequest
	}{
		{
			name:   "post not published",
			client: client,
			req:    models.BookingRequest{PostID: draft.ID.Hex(), StartDate: start, EndDate: end, GuestCount: 2},
		},
		{
			name:   "owner booking own post",
			client: owner,
			req:    models.BookingRequest{PostID: post.ID.Hex(), StartDate: start, EndDate: end, GuestCount: 2},
		},
		{
			name:   "guest count over capacity",
			client: client,
			req:    models.BookingRequest{PostID: post.ID.Hex(), StartDate: start, EndDate: end, GuestCount: 5},
		},
		{
			name:   "start date after end date",
			client: client,
			req:    models.BookingRequest{PostID: post.ID.Hex(), StartDate: end, EndDate: start, GuestCount: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewBookingService(newFakeBookingStore(), newFakePostStore(post, draft), &fakeNotifier{})
			_, err := svc.Create(context.Background(), tt.client, &tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Create() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateNotifiesOwner(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)
	notifier := &fakeNotifier{}
	store := newFakeBookingStore()
	svc := NewBookingService(store, newFakePostStore(post), notifier)

	start := time.Now().AddDate(0, 0, 10)
	booking, err := svc.Create(context.Background(), client, &models.BookingRequest{
		PostID:     post.ID.Hex(),
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 3),
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if booking.Status != models.BookingStatusRequested {
		t.Errorf("Status = %s, want %s", booking.Status, models.BookingStatusRequested)
	}
	if booking.TotalAmount != 300 {
		t.Errorf("TotalAmount = %v, want 300", booking.TotalAmount)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notifier.sent))
	}
	if notifier.sent[0].notification.UserID != owner {
		t.Errorf("notified %s, want owner %s", notifier.sent[0].notification.UserID.Hex(), owner.Hex())
	}
	if notifier.sent[0].notification.Type != models.NotificationTypeBookingRequested {
		t.Errorf("notification type = %s, want %s", notifier.sent[0].notification.Type, models.NotificationTypeBookingRequested)
	}
}

func TestRespond(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)

	t.Run("accept stamps acceptedAt", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusRequested)
		store := newFakeBookingStore(booking)
		notifier := &fakeNotifier{}
		svc := NewBookingService(store, newFakePostStore(post), notifier)

		got, err := svc.Respond(context.Background(), booking.ID, owner, true)
		if err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if got.Status != models.BookingStatusAccepted {
			t.Errorf("Status = %s, want accepted", got.Status)
		}
		stored := store.bookings[booking.ID]
		if stored.AcceptedAt == nil {
			t.Error("AcceptedAt not stamped")
		}
		if len(notifier.sent) != 1 || notifier.sent[0].notification.Type != models.NotificationTypeBookingAccepted {
			t.Errorf("notifications = %v, want one booking_accepted", notifier.sentTypes())
		}
	})

	t.Run("decline", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusRequested)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		got, err := svc.Respond(context.Background(), booking.ID, owner, false)
		if err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if got.Status != models.BookingStatusDeclined {
			t.Errorf("Status = %s, want declined", got.Status)
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusRequested)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, err := svc.Respond(context.Background(), booking.ID, client, true)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Respond() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("already accepted", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusAccepted)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, err := svc.Respond(context.Background(), booking.ID, owner, true)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Respond() error = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestCreateCheckout(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)

	t.Run("moves accepted to pending_payment", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusAccepted)
		store := newFakeBookingStore(booking)
		svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})
		gateway := &fakeGateway{name: models.GatewayMobbex, url: "https://mobbex.com/p/checkout/abc"}

		url, got, err := svc.CreateCheckout(context.Background(), booking.ID, client, gateway)
		if err != nil {
			t.Fatalf("CreateCheckout() error = %v", err)
		}
		if url != gateway.url {
			t.Errorf("url = %s, want %s", url, gateway.url)
		}
		if got.Status != models.BookingStatusPendingPayment {
			t.Errorf("Status = %s, want pending_payment", got.Status)
		}
		stored := store.bookings[booking.ID]
		if stored.PaymentData == nil || stored.PaymentData.Gateway != models.GatewayMobbex {
			t.Errorf("PaymentData = %+v, want pending mobbex snapshot", stored.PaymentData)
		}
	})

	t.Run("gateway failure leaves status untouched", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusAccepted)
		store := newFakeBookingStore(booking)
		svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})
		gateway := &fakeGateway{name: models.GatewayMobbex, err: errors.New("gateway down")}

		_, _, err := svc.CreateCheckout(context.Background(), booking.ID, client, gateway)
		if err == nil {
			t.Fatal("CreateCheckout() expected error")
		}
		if store.bookings[booking.ID].Status != models.BookingStatusAccepted {
			t.Errorf("Status = %s, want accepted", store.bookings[booking.ID].Status)
		}
		if store.casWrites != 0 {
			t.Errorf("casWrites = %d, want 0", store.casWrites)
		}
	})

	t.Run("only the client can start payment", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusAccepted)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, _, err := svc.CreateCheckout(context.Background(), booking.ID, owner, &fakeGateway{name: models.GatewayMobbex})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("CreateCheckout() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("not accepted yet", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusRequested)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, _, err := svc.CreateCheckout(context.Background(), booking.ID, client, &fakeGateway{name: models.GatewayMobbex})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("CreateCheckout() error = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestRequestCancelByStatus(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)

	tests := []struct {
		status      string
		cancellable bool
	}{
		{models.BookingStatusRequested, true},
		{models.BookingStatusPendingPayment, true},
		{models.BookingStatusPaid, true},
		{models.BookingStatusAccepted, false},
		{models.BookingStatusDeclined, false},
		{models.BookingStatusCancelled, false},
		{models.BookingStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			booking := testBooking(post, client, tt.status)
			store := newFakeBookingStore(booking)
			svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})

			result, err := svc.RequestCancel(context.Background(), booking.ID, client, models.CancelledByClient)
			if tt.cancellable {
				if err != nil {
					t.Fatalf("RequestCancel() error = %v", err)
				}
				if !result.Success {
					t.Error("Success = false, want true")
				}
				if store.bookings[booking.ID].Status != models.BookingStatusCancelled {
					t.Errorf("Status = %s, want cancelled", store.bookings[booking.ID].Status)
				}
			} else {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("RequestCancel() error = %v, want ErrInvalidTransition", err)
				}
				if store.bookings[booking.ID].Status != tt.status {
					t.Errorf("Status = %s, want unchanged %s", store.bookings[booking.ID].Status, tt.status)
				}
			}
		})
	}
}

func TestRequestCancelPenalty(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)

	t.Run("client pays the policy penalty", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPaid)
		store := newFakeBookingStore(booking)
		notifier := &fakeNotifier{}
		svc := NewBookingService(store, newFakePostStore(post), notifier)

		// StartDate is 5 days out, inside the 7-day / 50% window.
		result, err := svc.RequestCancel(context.Background(), booking.ID, client, models.CancelledByClient)
		if err != nil {
			t.Fatalf("RequestCancel() error = %v", err)
		}
		if result.PenaltyAmount != 500 {
			t.Errorf("PenaltyAmount = %v, want 500", result.PenaltyAmount)
		}
		stored := store.bookings[booking.ID]
		if stored.PenaltyAmount != 500 {
			t.Errorf("stored PenaltyAmount = %v, want 500", stored.PenaltyAmount)
		}
		if stored.CancelledBy != models.CancelledByClient {
			t.Errorf("CancelledBy = %s, want client", stored.CancelledBy)
		}
		if stored.CancelledAt == nil {
			t.Error("CancelledAt not stamped")
		}
		if got := notifier.sentTypes(); len(got) != 2 {
			t.Errorf("notifications = %v, want booking_cancelled to owner and cancel_confirmed to client", got)
		}
	})

	t.Run("owner cancels free", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPaid)
		store := newFakeBookingStore(booking)
		svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})

		result, err := svc.RequestCancel(context.Background(), booking.ID, owner, models.CancelledByOwner)
		if err != nil {
			t.Fatalf("RequestCancel() error = %v", err)
		}
		if result.PenaltyAmount != 0 {
			t.Errorf("PenaltyAmount = %v, want 0", result.PenaltyAmount)
		}
	})

	t.Run("wrong actor", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPaid)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, err := svc.RequestCancel(context.Background(), booking.ID, owner, models.CancelledByClient)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("RequestCancel() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("unknown cancelledBy", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPaid)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, err := svc.RequestCancel(context.Background(), booking.ID, client, "system")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("RequestCancel() error = %v, want ErrInvalidInput", err)
		}
	})
}

func paymentEvent(booking *models.Booking, canonical, paymentID string) *models.PaymentEvent {
	return &models.PaymentEvent{
		Gateway:          models.GatewayMercadoPago,
		BookingReference: booking.ID.Hex(),
		GatewayPaymentID: paymentID,
		GatewayStatus:    canonical,
		CanonicalStatus:  canonical,
		Amount:           booking.TotalAmount,
	}
}

func TestApplyPaymentEvent(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)

	t.Run("approved confirms the booking", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPendingPayment)
		store := newFakeBookingStore(booking)
		notifier := &fakeNotifier{}
		svc := NewBookingService(store, newFakePostStore(post), notifier)

		outcome, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, models.PaymentStatusApproved, "pay-1"))
		if err != nil {
			t.Fatalf("ApplyPaymentEvent() error = %v", err)
		}
		if !outcome.Applied {
			t.Errorf("outcome = %+v, want Applied", outcome)
		}
		stored := store.bookings[booking.ID]
		if stored.Status != models.BookingStatusPaid {
			t.Errorf("Status = %s, want paid", stored.Status)
		}
		if stored.PaidAt == nil {
			t.Error("PaidAt not stamped")
		}
		if stored.PaymentData == nil || stored.PaymentData.PaymentID != "pay-1" {
			t.Errorf("PaymentData = %+v, want pay-1 snapshot", stored.PaymentData)
		}
		// Both parties hear about an approved payment.
		if got := notifier.sentTypes(); len(got) != 2 {
			t.Errorf("notifications = %v, want two payment_completed", got)
		}
	})

	t.Run("rejected reopens for retry", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPendingPayment)
		store := newFakeBookingStore(booking)
		notifier := &fakeNotifier{}
		svc := NewBookingService(store, newFakePostStore(post), notifier)

		outcome, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, models.PaymentStatusRejected, "pay-2"))
		if err != nil {
			t.Fatalf("ApplyPaymentEvent() error = %v", err)
		}
		if !outcome.Applied {
			t.Errorf("outcome = %+v, want Applied", outcome)
		}
		if store.bookings[booking.ID].Status != models.BookingStatusRequested {
			t.Errorf("Status = %s, want requested", store.bookings[booking.ID].Status)
		}
		types := notifier.sentTypes()
		if len(types) != 1 || types[0] != models.NotificationTypePaymentFailed {
			t.Errorf("notifications = %v, want one payment_failed", types)
		}
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPendingPayment)
		store := newFakeBookingStore(booking)
		notifier := &fakeNotifier{}
		svc := NewBookingService(store, newFakePostStore(post), notifier)

		event := paymentEvent(booking, models.PaymentStatusApproved, "pay-3")
		if _, err := svc.ApplyPaymentEvent(context.Background(), event); err != nil {
			t.Fatalf("first delivery error = %v", err)
		}
		writes := store.casWrites
		sent := len(notifier.sent)

		outcome, err := svc.ApplyPaymentEvent(context.Background(), event)
		if err != nil {
			t.Fatalf("redelivery error = %v", err)
		}
		if !outcome.Duplicate {
			t.Errorf("outcome = %+v, want Duplicate", outcome)
		}
		if store.casWrites != writes {
			t.Errorf("casWrites = %d, want %d (no extra write)", store.casWrites, writes)
		}
		if len(notifier.sent) != sent {
			t.Errorf("sent %d notifications, want %d (no extra dispatch)", len(notifier.sent), sent)
		}
	})

	t.Run("terminal booking absorbs the event", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusCompleted)
		store := newFakeBookingStore(booking)
		notifier := &fakeNotifier{}
		svc := NewBookingService(store, newFakePostStore(post), notifier)

		outcome, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, models.PaymentStatusApproved, "pay-4"))
		if err != nil {
			t.Fatalf("ApplyPaymentEvent() error = %v", err)
		}
		if !outcome.Ignored {
			t.Errorf("outcome = %+v, want Ignored", outcome)
		}
		if store.bookings[booking.ID].Status != models.BookingStatusCompleted {
			t.Errorf("Status = %s, want completed", store.bookings[booking.ID].Status)
		}
		if len(notifier.sent) != 0 {
			t.Errorf("sent %d notifications, want none for a finalized booking", len(notifier.sent))
		}
	})

	t.Run("illegal transition is ignored", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusRequested)
		store := newFakeBookingStore(booking)
		svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})

		outcome, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, models.PaymentStatusApproved, "pay-5"))
		if err != nil {
			t.Fatalf("ApplyPaymentEvent() error = %v", err)
		}
		if !outcome.Ignored {
			t.Errorf("outcome = %+v, want Ignored", outcome)
		}
	})

	t.Run("bad booking reference", func(t *testing.T) {
		svc := NewBookingService(newFakeBookingStore(), newFakePostStore(post), &fakeNotifier{})

		_, err := svc.ApplyPaymentEvent(context.Background(), &models.PaymentEvent{
			Gateway:          models.GatewayMobbex,
			BookingReference: "not-an-object-id",
			CanonicalStatus:  models.PaymentStatusApproved,
		})
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("ApplyPaymentEvent() error = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("unknown canonical status", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPendingPayment)
		svc := NewBookingService(newFakeBookingStore(booking), newFakePostStore(post), &fakeNotifier{})

		_, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, "refunded", "pay-6"))
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ApplyPaymentEvent() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("CAS conflict retries and succeeds", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPendingPayment)
		store := newFakeBookingStore(booking)
		store.casConflicts = 1
		svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})

		outcome, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, models.PaymentStatusApproved, "pay-7"))
		if err != nil {
			t.Fatalf("ApplyPaymentEvent() error = %v", err)
		}
		if !outcome.Applied {
			t.Errorf("outcome = %+v, want Applied after retry", outcome)
		}
	})

	t.Run("CAS conflict exhausts retries", func(t *testing.T) {
		booking := testBooking(post, client, models.BookingStatusPendingPayment)
		store := newFakeBookingStore(booking)
		store.casConflicts = casAttempts
		svc := NewBookingService(store, newFakePostStore(post), &fakeNotifier{})

		_, err := svc.ApplyPaymentEvent(context.Background(), paymentEvent(booking, models.PaymentStatusApproved, "pay-8"))
		if !errors.Is(err, ErrStatusConflict) {
			t.Errorf("ApplyPaymentEvent() error = %v, want ErrStatusConflict", err)
		}
	})
}

// TestBookingLifecycle walks a booking through the full happy path, including
// a duplicate webhook delivery along the way.
func TestBookingLifecycle(t *testing.T) {
	owner := primitive.NewObjectID()
	client := primitive.NewObjectID()
	post := testPost(owner)
	store := newFakeBookingStore()
	notifier := &fakeNotifier{}
	svc := NewBookingService(store, newFakePostStore(post), notifier)
	ctx := context.Background()

	start := time.Now().AddDate(0, 0, 10)
	booking, err := svc.Create(ctx, client, &models.BookingRequest{
		PostID:     post.ID.Hex(),
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 2),
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Respond(ctx, booking.ID, owner, true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	gateway := &fakeGateway{name: models.GatewayMercadoPago, url: "https://mercadopago.com/checkout/xyz"}
	if _, _, err := svc.CreateCheckout(ctx, booking.ID, client, gateway); err != nil {
		t.Fatalf("CreateCheckout() error = %v", err)
	}

	event := paymentEvent(booking, models.PaymentStatusApproved, "pay-final")
	outcome, err := svc.ApplyPaymentEvent(ctx, event)
	if err != nil {
		t.Fatalf("ApplyPaymentEvent() error = %v", err)
	}
	if !outcome.Applied {
		t.Fatalf("outcome = %+v, want Applied", outcome)
	}

	// The gateway redelivers; nothing may change.
	redelivered, err := svc.ApplyPaymentEvent(ctx, event)
	if err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if !redelivered.Duplicate {
		t.Errorf("redelivery outcome = %+v, want Duplicate", redelivered)
	}

	if _, err := svc.Complete(ctx, booking.ID, owner); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	final := store.bookings[booking.ID]
	if final.Status != models.BookingStatusCompleted {
		t.Errorf("final status = %s, want completed", final.Status)
	}
	if final.PaidAt == nil || final.CompletedAt == nil || final.AcceptedAt == nil {
		t.Error("lifecycle timestamps missing")
	}
}
