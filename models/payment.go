package models

import "encoding/json"

// Payment gateways
const (
	GatewayMercadoPago = "mercadopago"
	GatewayMobbex      = "mobbex"
)

// Canonical payment statuses, independent of gateway vocabulary
const (
	PaymentStatusApproved = "approved"
	PaymentStatusPending  = "pending"
	PaymentStatusRejected = "rejected"
)

// PaymentEvent is the adapter-normalized form of a gateway webhook delivery.
// It is not persisted on its own; the state machine folds it into the
// booking's PaymentData snapshot.
type PaymentEvent struct {
	Gateway          string          `json:"gateway"`
	BookingReference string          `json:"bookingReference"`
	GatewayPaymentID string          `json:"gatewayPaymentId"`
	GatewayStatus    string          `json:"gatewayStatus"`
	CanonicalStatus  string          `json:"canonicalStatus"`
	Amount           float64         `json:"amount,omitempty"`
	RawPayload       json.RawMessage `json:"rawPayload,omitempty"`
}

// MercadoPagoWebhook is the notification envelope MercadoPago POSTs to the
// webhook endpoint. It usually carries only the payment id; the authoritative
// status must be fetched from the payments API.
type MercadoPagoWebhook struct {
	ID     interface{} `json:"id,omitempty"`
	Type   string      `json:"type,omitempty"`
	Topic  string      `json:"topic,omitempty"`
	Action string      `json:"action,omitempty"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// MercadoPagoPayment is the subset of the payments API response the
// reconciliation adapter reads.
type MercadoPagoPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail,omitempty"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount,omitempty"`
	CurrencyID        string      `json:"currency_id,omitempty"`
}

// MobbexWebhook is the envelope Mobbex POSTs to the webhook endpoint. The
// payment is embedded, so no detail fetch is required on this path.
type MobbexWebhook struct {
	Type string            `json:"type,omitempty"`
	Data MobbexWebhookData `json:"data"`
}

// MobbexWebhookData holds the payment and checkout sections of a Mobbex
// webhook delivery.
type MobbexWebhookData struct {
	Payment  MobbexPayment `json:"payment"`
	Checkout struct {
		Reference string `json:"reference,omitempty"`
	} `json:"checkout"`
}

// MobbexPayment is the subset of a Mobbex payment the adapter reads.
type MobbexPayment struct {
	ID     string `json:"id"`
	Status struct {
		Code json.Number `json:"code"`
		Text string      `json:"text,omitempty"`
	} `json:"status"`
	Reference string  `json:"reference,omitempty"`
	Total     float64 `json:"total,omitempty"`
	Currency  string  `json:"currency,omitempty"`
}
