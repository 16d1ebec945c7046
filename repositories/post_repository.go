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

// PostRepository persists listing posts.
type PostRepository struct {
	collection *mongo.Collection
}

func NewPostRepository(db *mongo.Client) *PostRepository {
	return &PostRepository{
		collection: config.GetCollection(db, "posts"),
	}
}

func (r *PostRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) Insert(ctx context.Context, post *models.Post) error {
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// Update overwrites the editable fields of a post owned by ownerID.
func (r *PostRepository) Update(ctx context.Context, id, ownerID primitive.ObjectID, req *models.PostRequest) (*models.Post, error) {
	set := bson.M{
		"title":                req.Title,
		"description":          req.Description,
		"location":             req.Location,
		"pricePerNight":        req.PricePerNight,
		"currency":             req.Currency,
		"maxGuests":            req.MaxGuests,
		"images":               req.Images,
		"cancellationPolicies": req.CancellationPolicies,
		"updatedAt":            time.Now(),
	}

	res := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "ownerId": ownerID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var post models.Post
	if err := res.Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Publish flips a draft post to published.
func (r *PostRepository) Publish(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Post, error) {
	res := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "ownerId": ownerID},
		bson.M{"$set": bson.M{"status": models.PostStatusPublished, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var post models.Post
	if err := res.Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) FindPublished(ctx context.Context) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"status": models.PostStatusPublished},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
