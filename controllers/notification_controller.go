package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/config"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/repositories"
)

// NotificationController handles in-app notifications
type NotificationController struct {
	db            *mongo.Client
	notifications *repositories.NotificationRepository
}

// NewNotificationController creates a new notification controller
func NewNotificationController(db *mongo.Client) *NotificationController {
	return &NotificationController{
		db:            db,
		notifications: repositories.NewNotificationRepository(db),
	}
}

// GetUserNotifications retrieves the authenticated user's notifications
func (c *NotificationController) GetUserNotifications(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	notifications, err := c.notifications.FindByUser(ctx.Request().Context(), userID)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error retrieving notifications",
		})
	}

	return ctx.JSON(http.StatusOK, models.NotificationsResponse{
		Status:  http.StatusOK,
		Message: "Notifications retrieved successfully",
		Data:    notifications,
	})
}

// MarkNotificationRead marks one of the user's notifications as read
func (c *NotificationController) MarkNotificationRead(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	notificationID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid notification ID",
		})
	}

	if err := c.notifications.MarkRead(ctx.Request().Context(), notificationID, userID); err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notification marked as read",
	})
}

// UpdateFCMToken stores the device push token for the authenticated user
func (c *NotificationController) UpdateFCMToken(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	var request struct {
		FCMToken string `json:"fcmToken" validate:"required"`
	}
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if err := ctx.Validate(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	users := config.GetCollection(c.db, "users")
	result, err := users.UpdateOne(ctx.Request().Context(),
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"fcmToken": request.FCMToken}},
	)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update FCM token",
		})
	}
	if result.MatchedCount == 0 {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "FCM token updated successfully",
	})
}
