package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/middleware"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/repositories"
	"github.com/andar-app/andar_backend/services"
	"github.com/andar-app/andar_backend/utils"
	"github.com/andar-app/andar_backend/websocket"
)

// BookingController handles booking-related API endpoints
type BookingController struct {
	bookings *repositories.BookingRepository
	settings *repositories.SettingsRepository
	service  *services.BookingService
}

// NewBookingController creates a new booking controller
func NewBookingController(db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) *BookingController {
	bookings := repositories.NewBookingRepository(db)
	posts := repositories.NewPostRepository(db)
	notifier := utils.NewNotificationDispatcher(db, redisClient, hub)

	return &BookingController{
		bookings: bookings,
		settings: repositories.NewSettingsRepository(db),
		service:  services.NewBookingService(bookings, posts, notifier),
	}
}

// CreateBooking handles the creation of a new booking
func (c *BookingController) CreateBooking(ctx echo.Context) error {
	clientID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	var request models.BookingRequest
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

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	booking, err := c.service.Create(reqCtx, clientID, &request)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, models.BookingResponse{
		Status:  http.StatusCreated,
		Message: "Booking created successfully",
		Data:    booking,
	})
}

// GetUserBookings retrieves all bookings for the authenticated client
func (c *BookingController) GetUserBookings(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookings, err := c.bookings.FindByClient(ctx.Request().Context(), userID)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error retrieving bookings",
		})
	}

	return ctx.JSON(http.StatusOK, models.BookingsResponse{
		Status:  http.StatusOK,
		Message: "Bookings retrieved successfully",
		Data:    bookings,
	})
}

// GetOwnerBookings retrieves all bookings on the authenticated owner's posts
func (c *BookingController) GetOwnerBookings(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookings, err := c.bookings.FindByOwner(ctx.Request().Context(), userID)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error retrieving bookings",
		})
	}

	return ctx.JSON(http.StatusOK, models.BookingsResponse{
		Status:  http.StatusOK,
		Message: "Bookings retrieved successfully",
		Data:    bookings,
	})
}

// GetBooking retrieves a single booking visible to either party
func (c *BookingController) GetBooking(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	booking, err := c.bookings.GetByID(ctx.Request().Context(), bookingID)
	if err != nil {
		return bookingError(ctx, err)
	}
	if booking.ClientID != userID && booking.OwnerID != userID {
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "You have no access to this booking",
		})
	}

	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: "Booking retrieved successfully",
		Data:    booking,
	})
}

// RespondBooking lets the post owner accept or decline a booking request
func (c *BookingController) RespondBooking(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	var request models.BookingRespondRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	booking, err := c.service.Respond(reqCtx, bookingID, userID, request.Accept)
	if err != nil {
		return bookingError(ctx, err)
	}

	message := "Booking declined"
	if request.Accept {
		message = "Booking accepted"
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: message,
		Data:    booking,
	})
}

// CreateCheckout creates a payment checkout for an accepted booking
func (c *BookingController) CreateCheckout(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	var request models.CheckoutRequest
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

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 15*time.Second)
	defer cancel()

	paymentSettings, err := c.settings.GetPaymentSettings(reqCtx)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load payment settings",
		})
	}

	var gateway services.CheckoutProvider
	switch request.Gateway {
	case models.GatewayMercadoPago:
		gateway = services.NewMercadoPagoService(paymentSettings.MercadoPago, paymentSettings.BaseURL)
	case models.GatewayMobbex:
		gateway = services.NewMobbexService(paymentSettings.Mobbex, paymentSettings.BaseURL)
	default:
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Unknown payment gateway",
		})
	}

	checkoutURL, booking, err := c.service.CreateCheckout(reqCtx, bookingID, userID, gateway)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Checkout created successfully. Complete the payment to confirm the booking.",
		Data: map[string]interface{}{
			"checkoutUrl": checkoutURL,
			"booking":     booking,
		},
	})
}

// CancelBooking cancels a booking on behalf of the client or the owner
func (c *BookingController) CancelBooking(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	var request models.CancelBookingRequest
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

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	result, err := c.service.RequestCancel(reqCtx, bookingID, userID, request.CancelledBy)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Booking cancelled successfully",
		Data:    result,
	})
}

// CompleteBooking marks a paid booking as completed
func (c *BookingController) CompleteBooking(ctx echo.Context) error {
	userID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	booking, err := c.service.Complete(reqCtx, bookingID, userID)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: "Booking completed",
		Data:    booking,
	})
}

// authenticatedUserID resolves the JWT claims into a user ObjectID.
func authenticatedUserID(ctx echo.Context) (primitive.ObjectID, error) {
	claims := middleware.GetUserFromToken(ctx)
	if claims == nil {
		return primitive.NilObjectID, errors.New("missing token")
	}
	return primitive.ObjectIDFromHex(claims.UserID)
}

func unauthorized(ctx echo.Context) error {
	return ctx.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: "Unauthorized",
	})
}

// bookingError maps the service error taxonomy onto HTTP statuses.
func bookingError(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrStatusConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUpstreamTimeout):
		status = http.StatusGatewayTimeout
	}
	return ctx.JSON(status, models.Response{
		Status:  status,
		Message: err.Error(),
	})
}
