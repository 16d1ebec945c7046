package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andar-app/andar_backend/config"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/services"
)

// BookingRepository persists bookings and implements the state machine's
// atomic read-validate-write contract.
type BookingRepository struct {
	collection *mongo.Collection
}

func NewBookingRepository(db *mongo.Client) *BookingRepository {
	return &BookingRepository{
		collection: config.GetCollection(db, "bookings"),
	}
}

func (r *BookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var booking models.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) Insert(ctx context.Context, booking *models.Booking) error {
	_, err := r.collection.InsertOne(ctx, booking)
	return err
}

// UpdateStatusCAS performs the status transition as a single conditional
// write: the filter pins the expected current status, so a concurrent writer
// that already moved the booking makes this update match nothing. Webhook
// delivery and user cancellation racing on the same booking serialize here.
func (r *BookingRepository) UpdateStatusCAS(ctx context.Context, id primitive.ObjectID, fromStatus, toStatus string, update models.BookingStatusUpdate) error {
	set := bson.M{
		"status":    toStatus,
		"updatedAt": time.Now(),
	}
	if update.PenaltyAmount != nil {
		set["penaltyAmount"] = *update.PenaltyAmount
	}
	if update.CancelledBy != "" {
		set["cancelledBy"] = update.CancelledBy
	}
	if update.PaymentData != nil {
		set["paymentData"] = update.PaymentData
	}
	if update.AcceptedAt != nil {
		set["acceptedAt"] = *update.AcceptedAt
	}
	if update.PaidAt != nil {
		set["paidAt"] = *update.PaidAt
	}
	if update.CancelledAt != nil {
		set["cancelledAt"] = *update.CancelledAt
	}
	if update.CompletedAt != nil {
		set["completedAt"] = *update.CompletedAt
	}

	res := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": fromStatus},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the booking is gone or its status moved under us;
			// disambiguate for the caller.
			count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": id})
			if countErr == nil && count == 0 {
				return services.ErrNotFound
			}
			return services.ErrStatusConflict
		}
		return err
	}
	return nil
}

func (r *BookingRepository) FindByClient(ctx context.Context, clientID primitive.ObjectID) ([]models.Booking, error) {
	return r.find(ctx, bson.M{"clientId": clientID})
}

func (r *BookingRepository) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Booking, error) {
	return r.find(ctx, bson.M{"ownerId": ownerID})
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}
