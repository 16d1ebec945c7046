package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/repositories"
	"github.com/andar-app/andar_backend/security"
	"github.com/andar-app/andar_backend/services"
	"github.com/andar-app/andar_backend/utils"
	"github.com/andar-app/andar_backend/websocket"
)

// maxWebhookBody bounds how much of a gateway delivery we are willing to read.
const maxWebhookBody = 1 << 20

// PaymentController receives payment gateway webhooks and reconciles them
// against bookings. Both endpoints are idempotent: gateways redeliver
// aggressively and deliveries can arrive out of order or duplicated.
type PaymentController struct {
	settings *repositories.SettingsRepository
	service  *services.BookingService
}

// NewPaymentController creates a new payment controller
func NewPaymentController(db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) *PaymentController {
	bookings := repositories.NewBookingRepository(db)
	posts := repositories.NewPostRepository(db)
	notifier := utils.NewNotificationDispatcher(db, redisClient, hub)

	return &PaymentController{
		settings: repositories.NewSettingsRepository(db),
		service:  services.NewBookingService(bookings, posts, notifier),
	}
}

// HandleMercadoPagoWebhook processes MercadoPago payment notifications.
// The notification only carries the payment id, so the full payment is
// fetched back from the MercadoPago API before anything is applied.
func (c *PaymentController) HandleMercadoPagoWebhook(ctx echo.Context) error {
	deliveryID := uuid.New().String()

	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		log.Printf("MercadoPago webhook %s: failed to read body: %v", deliveryID, err)
		return ctx.NoContent(http.StatusBadRequest)
	}
	log.Printf("MercadoPago webhook %s: headers=%v", deliveryID, security.SanitizeHeaders(ctx.Request().Header))

	paymentID, eventType := mercadoPagoDelivery(ctx, body)
	if eventType != "" && eventType != "payment" {
		// Merchant orders, plans and other topics are not reconciled here.
		log.Printf("MercadoPago webhook %s: ignoring topic %q", deliveryID, eventType)
		return ctx.NoContent(http.StatusOK)
	}
	if paymentID == "" {
		// Without a payment id there is nothing a redelivery could fix.
		log.Printf("MercadoPago webhook %s: no payment id in delivery: %s",
			deliveryID, security.TruncatePayload(body))
		return ctx.NoContent(http.StatusOK)
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 15*time.Second)
	defer cancel()

	paymentSettings, err := c.settings.GetPaymentSettings(reqCtx)
	if err != nil {
		log.Printf("MercadoPago webhook %s: failed to load payment settings: %v", deliveryID, err)
		return ctx.NoContent(http.StatusInternalServerError)
	}
	mercadoPago := services.NewMercadoPagoService(paymentSettings.MercadoPago, paymentSettings.BaseURL)

	payment, err := mercadoPago.GetPayment(reqCtx, paymentID)
	if err != nil {
		if errors.Is(err, services.ErrUpstreamTimeout) {
			// Transient: answer non-2xx so MercadoPago redelivers later.
			log.Printf("MercadoPago webhook %s: payment %s detail fetch timed out", deliveryID, paymentID)
			return ctx.NoContent(http.StatusInternalServerError)
		}
		if errors.Is(err, services.ErrNotFound) {
			log.Printf("MercadoPago webhook %s: payment %s not found upstream", deliveryID, paymentID)
			return ctx.NoContent(http.StatusOK)
		}
		log.Printf("MercadoPago webhook %s: payment %s detail fetch failed: %v", deliveryID, paymentID, err)
		return ctx.NoContent(http.StatusInternalServerError)
	}

	event, err := services.NormalizeMercadoPagoPayment(payment, body)
	if err != nil {
		log.Printf("MercadoPago webhook %s: payment %s not reconcilable: %v", deliveryID, paymentID, err)
		return ctx.NoContent(http.StatusOK)
	}

	return c.applyEvent(ctx, deliveryID, event)
}

// HandleMobbexWebhook processes Mobbex payment notifications. Mobbex
// deliveries are self-contained, no callback to the gateway is needed.
func (c *PaymentController) HandleMobbexWebhook(ctx echo.Context) error {
	deliveryID := uuid.New().String()

	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		log.Printf("Mobbex webhook %s: failed to read body: %v", deliveryID, err)
		return ctx.NoContent(http.StatusBadRequest)
	}
	log.Printf("Mobbex webhook %s: headers=%v", deliveryID, security.SanitizeHeaders(ctx.Request().Header))

	var webhook models.MobbexWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		// Unparseable body, no identifier to recover.
		log.Printf("Mobbex webhook %s: unparseable delivery: %s",
			deliveryID, security.TruncatePayload(body))
		return ctx.NoContent(http.StatusOK)
	}

	event, err := services.NormalizeMobbexWebhook(&webhook, body)
	if err != nil {
		// Includes deliveries whose reference was not issued by us.
		log.Printf("Mobbex webhook %s: delivery not reconcilable: %v", deliveryID, err)
		return ctx.NoContent(http.StatusOK)
	}

	return c.applyEvent(ctx, deliveryID, event)
}

// applyEvent runs the normalized event through the booking service and maps
// the outcome onto the response the gateway expects.
func (c *PaymentController) applyEvent(ctx echo.Context, deliveryID string, event *models.PaymentEvent) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	outcome, err := c.service.ApplyPaymentEvent(reqCtx, event)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMalformedPayload):
			log.Printf("%s webhook %s: bad booking reference %q", event.Gateway, deliveryID, event.BookingReference)
			return ctx.NoContent(http.StatusOK)
		case errors.Is(err, services.ErrNotFound):
			// The referenced booking does not exist; redelivery cannot help.
			log.Printf("%s webhook %s: booking %s not found", event.Gateway, deliveryID, event.BookingReference)
			return ctx.NoContent(http.StatusOK)
		case errors.Is(err, services.ErrStatusConflict):
			// Lost the write race repeatedly; let the gateway redeliver.
			log.Printf("%s webhook %s: booking %s status conflict", event.Gateway, deliveryID, event.BookingReference)
			return ctx.NoContent(http.StatusInternalServerError)
		default:
			log.Printf("%s webhook %s: apply failed: %v", event.Gateway, deliveryID, err)
			return ctx.NoContent(http.StatusInternalServerError)
		}
	}

	switch {
	case outcome.Applied:
		log.Printf("%s webhook %s: booking %s moved %s -> %s (payment %s)",
			event.Gateway, deliveryID, event.BookingReference, outcome.FromStatus, outcome.ToStatus, event.GatewayPaymentID)
	case outcome.Duplicate:
		log.Printf("%s webhook %s: duplicate delivery for payment %s", event.Gateway, deliveryID, event.GatewayPaymentID)
	default:
		log.Printf("%s webhook %s: ignored (%s)", event.Gateway, deliveryID, outcome.Reason)
	}
	return ctx.NoContent(http.StatusOK)
}

// mercadoPagoDelivery extracts the payment id and topic from a delivery.
// MercadoPago sends both JSON bodies and query-parameter style (IPN)
// notifications depending on configuration.
func mercadoPagoDelivery(ctx echo.Context, body []byte) (paymentID, eventType string) {
	var webhook models.MercadoPagoWebhook
	if err := json.Unmarshal(body, &webhook); err == nil {
		paymentID = webhook.Data.ID.String()
		eventType = webhook.Type
		if eventType == "" {
			eventType = webhook.Topic
		}
	}
	if paymentID == "" {
		paymentID = ctx.QueryParam("data.id")
	}
	if paymentID == "" {
		paymentID = ctx.QueryParam("id")
	}
	if eventType == "" {
		eventType = ctx.QueryParam("topic")
	}
	if eventType == "" {
		eventType = ctx.QueryParam("type")
	}
	return paymentID, eventType
}
