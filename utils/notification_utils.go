package utils

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/gomail.v2"

	"github.com/andar-app/andar_backend/config"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/websocket"
)

// dedupTTL keeps delivery keys long enough to cover gateway webhook
// redelivery windows.
const dedupTTL = 48 * time.Hour

// NotificationDispatcher delivers booking notifications: the in-app record is
// durable, WebSocket/FCM/email are best-effort. Deliveries are deduplicated
// by the caller-provided key so webhook retries do not spam recipients.
type NotificationDispatcher struct {
	db    *mongo.Client
	redis *redis.Client
	hub   *websocket.Hub
}

// NewNotificationDispatcher creates a dispatcher. redisClient and hub may be
// nil; dedup then falls back to the state machine's own idempotency and
// realtime push is skipped.
func NewNotificationDispatcher(db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) *NotificationDispatcher {
	return &NotificationDispatcher{db: db, redis: redisClient, hub: hub}
}

// Dispatch persists and fans out a notification, once per dedup key.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, notification models.Notification, dedupKey string) error {
	if dedupKey != "" && !d.claimDedupKey(ctx, dedupKey) {
		log.Printf("Skipping duplicate notification %s for user %s", notification.Type, notification.UserID.Hex())
		return nil
	}

	if err := SaveNotification(d.db, notification.UserID, notification.Title, notification.Message, notification.Type, notification.Data); err != nil {
		// The in-app record is the durable delivery; release the key so a
		// retry can claim it again.
		d.releaseDedupKey(ctx, dedupKey)
		return err
	}

	if d.hub != nil {
		if err := d.hub.SendToUser(notification.UserID, websocket.Notification{
			Type:    notification.Type,
			Message: notification.Message,
			Data:    notification.Data,
		}); err != nil {
			log.Printf("WebSocket push skipped for user %s: %v", notification.UserID.Hex(), err)
		}
	}

	if err := SendFCMNotificationToUser(d.db, notification.UserID, notification.Title, notification.Message, notification.Type); err != nil {
		log.Printf("FCM push failed for user %s: %v", notification.UserID.Hex(), err)
	}

	if err := d.sendEmail(notification); err != nil {
		log.Printf("Email notification failed for user %s: %v", notification.UserID.Hex(), err)
	}

	return nil
}

// claimDedupKey reserves the delivery key. Without Redis every claim
// succeeds.
func (d *NotificationDispatcher) claimDedupKey(ctx context.Context, key string) bool {
	if d.redis == nil {
		return true
	}
	ok, err := d.redis.SetNX(ctx, "notif:dedup:"+key, 1, dedupTTL).Result()
	if err != nil {
		log.Printf("Redis dedup check failed, delivering anyway: %v", err)
		return true
	}
	return ok
}

func (d *NotificationDispatcher) releaseDedupKey(ctx context.Context, key string) {
	if d.redis == nil || key == "" {
		return
	}
	if err := d.redis.Del(ctx, "notif:dedup:"+key).Err(); err != nil {
		log.Printf("Failed to release dedup key %s: %v", key, err)
	}
}

func (d *NotificationDispatcher) sendEmail(notification models.Notification) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	if smtpHost == "" {
		return nil // email disabled
	}
	smtpPort := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &smtpPort)
	}

	var user models.User
	err := config.GetCollection(d.db, "users").
		FindOne(context.Background(), bson.M{"_id": notification.UserID}).Decode(&user)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", notification.Title)
	m.SetBody("text/plain", fmt.Sprintf("Dear %s,\n\n%s\n\nBest regards,\nThe Andar team", user.FullName, notification.Message))

	d2 := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	return d2.DialAndSend(m)
}

// SaveNotification saves a notification to the database
func SaveNotification(db *mongo.Client, userID primitive.ObjectID, title, message, notifType string, data interface{}) error {
	collection := config.GetCollection(db, "notifications")

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		Data:      data,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	_, err := collection.InsertOne(context.Background(), notification)
	return err
}

// SendFCMNotificationToUser sends a Firebase Cloud Messaging push to a user
func SendFCMNotificationToUser(db *mongo.Client, userID primitive.ObjectID, title, message, notifType string) error {
	var user models.User
	err := config.GetCollection(db, "users").
		FindOne(context.Background(), bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	if user.FCMToken == "" {
		return nil // user has no registered device
	}

	if config.FirebaseApp == nil {
		return nil // push disabled
	}

	ctx := context.Background()
	client, err := config.FirebaseApp.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	fcmMessage := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		Data: map[string]string{
			"type":      notifType,
			"timestamp": time.Now().Format(time.RFC3339),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "andar_fcm_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  message,
					},
					Sound: "default",
					Badge: func() *int { v := 1; return &v }(),
				},
			},
		},
	}

	response, err := client.Send(ctx, fcmMessage)
	if err != nil {
		return fmt.Errorf("failed to send FCM notification: %w", err)
	}

	log.Printf("FCM notification sent to user %s: %s", userID.Hex(), response)
	return nil
}
