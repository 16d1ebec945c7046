package models

import "time"

// MercadoPagoSettings holds the MercadoPago API credentials.
type MercadoPagoSettings struct {
	AccessToken string `json:"accessToken,omitempty" bson:"accessToken,omitempty"`
	PublicKey   string `json:"publicKey,omitempty" bson:"publicKey,omitempty"`
}

// MobbexSettings holds the Mobbex API credentials.
type MobbexSettings struct {
	APIKey      string `json:"apiKey,omitempty" bson:"apiKey,omitempty"`
	AccessToken string `json:"accessToken,omitempty" bson:"accessToken,omitempty"`
}

// PaymentSettings is the system-wide payment configuration document. It is
// loaded once per request and passed explicitly into the gateway services,
// never read as ambient global state.
type PaymentSettings struct {
	ID          string              `json:"id,omitempty" bson:"_id,omitempty"`
	MercadoPago MercadoPagoSettings `json:"mercadopago" bson:"mercadopago"`
	Mobbex      MobbexSettings      `json:"mobbex" bson:"mobbex"`
	BaseURL     string              `json:"baseUrl,omitempty" bson:"baseUrl,omitempty"` // public base URL for webhook/redirect URLs
	UpdatedAt   time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// PaymentSettingsRequest model for updating payment credentials
type PaymentSettingsRequest struct {
	MercadoPago MercadoPagoSettings `json:"mercadopago"`
	Mobbex      MobbexSettings      `json:"mobbex"`
	BaseURL     string              `json:"baseUrl,omitempty"`
}
