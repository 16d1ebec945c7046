package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andar-app/andar_backend/models"
)

// mobbexReferencePrefix is prepended to the booking id in checkout
// references; the webhook adapter strips it back off.
const mobbexReferencePrefix = "booking_"

// MobbexService handles interactions with the Mobbex API.
type MobbexService struct {
	baseURL     string
	apiKey      string
	accessToken string
	siteBaseURL string
	httpClient  *http.Client
}

// NewMobbexService creates a Mobbex service from explicitly passed
// credentials.
func NewMobbexService(cfg models.MobbexSettings, siteBaseURL string) *MobbexService {
	return &MobbexService{
		baseURL:     "https://api.mobbex.com/p",
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		siteBaseURL: siteBaseURL,
		httpClient:  &http.Client{Timeout: detailFetchTimeout},
	}
}

// GatewayName implements CheckoutProvider.
func (s *MobbexService) GatewayName() string {
	return models.GatewayMobbex
}

// makeRequest performs an HTTP request against the Mobbex API and returns the
// raw response body.
func (s *MobbexService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	if s.apiKey == "" || s.accessToken == "" {
		return nil, fmt.Errorf("missing Mobbex credentials")
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
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("x-access-token", s.accessToken)

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
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("mobbex API error: %d %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// CreateCheckout creates a Mobbex checkout for the booking and returns the
// hosted payment URL.
func (s *MobbexService) CreateCheckout(ctx context.Context, booking *models.Booking) (string, error) {
	payload := map[string]interface{}{
		"total":       booking.TotalAmount,
		"currency":    booking.Currency,
		"reference":   mobbexReferencePrefix + booking.ID.Hex(),
		"description": fmt.Sprintf("Booking %s", booking.ID.Hex()),
		"return_url":  s.siteBaseURL + "/bookings/" + booking.ID.Hex(),
		"webhook":     s.siteBaseURL + "/api/payments/mobbex/webhook",
	}

	respBody, err := s.makeRequest(ctx, http.MethodPost, "/checkout", payload)
	if err != nil {
		return "", err
	}

	var checkout struct {
		Result bool `json:"result"`
		Data   struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &checkout); err != nil {
		return "", fmt.Errorf("failed to parse checkout response: %w", err)
	}
	if !checkout.Result || checkout.Data.URL == "" {
		return "", fmt.Errorf("checkout response missing url")
	}
	return checkout.Data.URL, nil
}

// NormalizeMobbexWebhook turns a Mobbex webhook delivery into the canonical
// PaymentEvent. The payment is embedded in the webhook, so no detail fetch is
// needed on this path. Stateless and side-effect-free; it fails only when the
// booking reference is unrecoverable.
func NormalizeMobbexWebhook(webhook *models.MobbexWebhook, raw json.RawMessage) (*models.PaymentEvent, error) {
	if webhook == nil {
		return nil, fmt.Errorf("%w: empty webhook", ErrMalformedPayload)
	}

	reference := webhook.Data.Payment.Reference
	if reference == "" {
		reference = webhook.Data.Checkout.Reference
	}
	if !strings.HasPrefix(reference, mobbexReferencePrefix) {
		return nil, fmt.Errorf("%w: reference %q is not a booking reference", ErrMalformedPayload, reference)
	}

	code := webhook.Data.Payment.Status.Code.String()
	return &models.PaymentEvent{
		Gateway:          models.GatewayMobbex,
		BookingReference: strings.TrimPrefix(reference, mobbexReferencePrefix),
		GatewayPaymentID: webhook.Data.Payment.ID,
		GatewayStatus:    code,
		CanonicalStatus:  mobbexCanonicalStatus(code),
		Amount:           webhook.Data.Payment.Total,
		RawPayload:       raw,
	}, nil
}

// mobbexCanonicalStatus maps Mobbex numeric status codes onto the canonical
// outcome: 200 is paid, the 4xx/5xx/6xx families (rejected, failed, expired,
// cancelled) are rejected, everything else including unknown codes stays
// pending.
func mobbexCanonicalStatus(code string) string {
	switch code {
	case "200":
		return models.PaymentStatusApproved
	}
	if len(code) == 3 {
		switch code[0] {
		case '4', '5', '6':
			return models.PaymentStatusRejected
		}
	}
	return models.PaymentStatusPending
}
