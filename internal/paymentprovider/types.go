package paymentprovider

import "github.com/stripe/stripe-go/v76"

// Режимы checkout-сессии провайдера.
const (
	ModePayment      = string(stripe.CheckoutSessionModePayment)
	ModeSubscription = string(stripe.CheckoutSessionModeSubscription)
)

// CheckoutRequest — параметры создания checkout-сессии.
type CheckoutRequest struct {
	Plan    string
	PriceID string
	UserID  string
}

// CheckoutSession — ответ провайдера на создание checkout-сессии.
type CheckoutSession struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

type checkoutObject struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	AmountTotal       *int64            `json:"amount_total"`
	Currency          string            `json:"currency"`
}

type invoiceObject struct {
	Metadata map[string]string `json:"metadata"`
	Lines    struct {
		Data []struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"data"`
	} `json:"lines"`
	SubscriptionDetails struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	AmountPaid *int64 `json:"amount_paid"`
	Currency   string `json:"currency"`
}
