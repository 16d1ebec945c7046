package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andar-app/andar_backend/models"
)

// detailFetchTimeout bounds calls that fetch authoritative payment details
// from a gateway while handling a webhook. A timeout is transient: the
// delivery is aborted without state mutation and the gateway redelivers.
const detailFetchTimeout = 5 * time.Second

// mercadoPagoStatusMap maps MercadoPago's status vocabulary onto the
// canonical three-way outcome. Anything not listed (pending, in_process,
// in_mediation, authorized, unknown values) stays pending; an unknown status
// must never count as approved.
var mercadoPagoStatusMap = map[string]string{
	"approved":     models.PaymentStatusApproved,
	"rejected":     models.PaymentStatusRejected,
	"cancelled":    models.PaymentStatusRejected,
	"refunded":     models.PaymentStatusRejected,
	"charged_back": models.PaymentStatusRejected,
}

// MercadoPagoService handles interactions with the MercadoPago API.
type MercadoPagoService struct {
	baseURL     string
	accessToken string
	siteBaseURL string
	httpClient  *http.Client
}

// NewMercadoPagoService creates a MercadoPago service from explicitly passed
// credentials. siteBaseURL is the public URL webhooks and redirects point at.
func NewMercadoPagoService(cfg models.MercadoPagoSettings, siteBaseURL string) *MercadoPagoService {
	return &MercadoPagoService{
		baseURL:     "https://api.mercadopago.com",
		accessToken: cfg.AccessToken,
		siteBaseURL: siteBaseURL,
		httpClient:  &http.Client{Timeout: detailFetchTimeout},
	}
}

// GatewayName implements CheckoutProvider.
func (s *MercadoPagoService) GatewayName() string {
	return models.GatewayMercadoPago
}

// makeRequest performs an HTTP request against the MercadoPago API and
// returns the raw response body.
func (s *MercadoPagoService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	if s.accessToken == "" {
		return nil, fmt.Errorf("missing MercadoPago access token")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrUpstreamTimeout, method, endpoint)
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: payment", ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("mercadopago API error: %d %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// CreateCheckout creates a checkout preference for the booking and returns
// the hosted payment URL. The booking id travels as external_reference so the
// webhook can correlate the payment back.
func (s *MercadoPagoService) CreateCheckout(ctx context.Context, booking *models.Booking) (string, error) {
	payload := map[string]interface{}{
		"external_reference": booking.ID.Hex(),
		"items": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Booking %s", booking.ID.Hex()),
				"quantity":    1,
				"unit_price":  booking.TotalAmount,
				"currency_id": booking.Currency,
			},
		},
		"notification_url": s.siteBaseURL + "/api/payments/mercadopago/webhook",
		"back_urls": map[string]string{
			"success": s.siteBaseURL + "/bookings/" + booking.ID.Hex(),
			"failure": s.siteBaseURL + "/bookings/" + booking.ID.Hex(),
			"pending": s.siteBaseURL + "/bookings/" + booking.ID.Hex(),
		},
	}

	respBody, err := s.makeRequest(ctx, http.MethodPost, "/checkout/preferences", payload)
	if err != nil {
		return "", err
	}

	var pref struct {
		InitPoint string `json:"init_point"`
	}
	if err := json.Unmarshal(respBody, &pref); err != nil {
		return "", fmt.Errorf("failed to parse preference response: %w", err)
	}
	if pref.InitPoint == "" {
		return "", fmt.Errorf("preference response missing init_point")
	}
	return pref.InitPoint, nil
}

// GetPayment fetches the authoritative payment details. MercadoPago webhooks
// only carry the payment id.
func (s *MercadoPagoService) GetPayment(ctx context.Context, paymentID string) (*models.MercadoPagoPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, detailFetchTimeout)
	defer cancel()

	respBody, err := s.makeRequest(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}

	var payment models.MercadoPagoPayment
	if err := json.Unmarshal(respBody, &payment); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}
	return &payment, nil
}

// NormalizeMercadoPagoPayment turns a MercadoPago payment into the canonical
// PaymentEvent. Stateless and side-effect-free; it fails only when the
// booking reference is unrecoverable.
func NormalizeMercadoPagoPayment(payment *models.MercadoPagoPayment, raw json.RawMessage) (*models.PaymentEvent, error) {
	if payment == nil || payment.ExternalReference == "" {
		return nil, fmt.Errorf("%w: missing external_reference", ErrMalformedPayload)
	}

	canonical, ok := mercadoPagoStatusMap[payment.Status]
	if !ok {
		canonical = models.PaymentStatusPending
	}

	return &models.PaymentEvent{
		Gateway:          models.GatewayMercadoPago,
		BookingReference: payment.ExternalReference,
		GatewayPaymentID: payment.ID.String(),
		GatewayStatus:    payment.Status,
		CanonicalStatus:  canonical,
		Amount:           payment.TransactionAmount,
		RawPayload:       raw,
	}, nil
}

// isTimeout classifies client errors that should count as a transient
// upstream timeout rather than a rejected payment.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
