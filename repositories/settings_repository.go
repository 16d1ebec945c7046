package repositories

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andar-app/andar_backend/config"
	"github.com/andar-app/andar_backend/models"
)

// SettingsRepository reads and writes the system-wide payment configuration
// document. Credentials live in the settings collection so admins can rotate
// them without a deploy; environment variables act as the fallback.
type SettingsRepository struct {
	collection *mongo.Collection
}

func NewSettingsRepository(db *mongo.Client) *SettingsRepository {
	return &SettingsRepository{
		collection: config.GetCollection(db, "settings"),
	}
}

// GetPaymentSettings loads the payment settings document, filling any blank
// credential from the environment.
func (r *SettingsRepository) GetPaymentSettings(ctx context.Context) (*models.PaymentSettings, error) {
	var settings models.PaymentSettings
	err := r.collection.FindOne(ctx, bson.M{"_id": "payments"}).Decode(&settings)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	if settings.MercadoPago.AccessToken == "" {
		settings.MercadoPago.AccessToken = os.Getenv("MERCADOPAGO_ACCESS_TOKEN")
	}
	if settings.MercadoPago.PublicKey == "" {
		settings.MercadoPago.PublicKey = os.Getenv("MERCADOPAGO_PUBLIC_KEY")
	}
	if settings.Mobbex.APIKey == "" {
		settings.Mobbex.APIKey = os.Getenv("MOBBEX_API_KEY")
	}
	if settings.Mobbex.AccessToken == "" {
		settings.Mobbex.AccessToken = os.Getenv("MOBBEX_ACCESS_TOKEN")
	}
	if settings.BaseURL == "" {
		settings.BaseURL = os.Getenv("BASE_URL")
	}
	return &settings, nil
}

// UpdatePaymentSettings upserts the payment settings document.
func (r *SettingsRepository) UpdatePaymentSettings(ctx context.Context, req *models.PaymentSettingsRequest) (*models.PaymentSettings, error) {
	set := bson.M{
		"mercadopago": req.MercadoPago,
		"mobbex":      req.Mobbex,
		"baseUrl":     req.BaseURL,
		"updatedAt":   time.Now(),
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": "payments"},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, err
	}
	return r.GetPaymentSettings(ctx)
}
