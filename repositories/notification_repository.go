package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andar-app/andar_backend/config"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/services"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Client) *NotificationRepository {
	return &NotificationRepository{
		collection: config.GetCollection(db, "notifications"),
	}
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(100),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}
