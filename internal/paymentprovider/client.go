// Package paymentprovider — клиент платёжного провайдера Stripe: создание
// checkout-сессий и разбор подписанных событий вебхука.
package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
)

// Client вызывает API провайдера.
type Client struct {
	secretKey string
	siteURL   string
	sessions  session.Client
}

// NewClient создаёт клиент. Пустой apiURL означает адрес API Stripe по умолчанию.
func NewClient(apiURL, secretKey, siteURL string) *Client {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if apiURL != "" {
		cfg.URL = stripe.String(apiURL)
	}
	return &Client{
		secretKey: secretKey,
		siteURL:   siteURL,
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Key: secretKey,
		},
	}
}

// CreateCheckoutSession создаёт сессию оплаты. Тариф pass оформляется как
// подписка, остальные — как разовый платёж. Идентификатор пользователя
// передаётся в client_reference_id и в метаданные, чтобы вернуться в событиях.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	if c.secretKey == "" {
		return nil, fmt.Errorf("%s: secret key is not configured: %w", op, apperr.ErrUpstreamUnavailable)
	}
	if req.PriceID == "" {
		return nil, fmt.Errorf("%s: no price for plan %q: %w", op, req.Plan, apperr.ErrInvalidArgument)
	}

	mode := ModePayment
	if req.Plan == "pass" {
		mode = ModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(c.siteURL + "?purchase=success"),
		CancelURL:         stripe.String(c.siteURL + "?purchase=cancel"),
		ClientReferenceID: stripe.String(req.UserID),
	}
	params.Context = ctx
	params.AddMetadata("plan", req.Plan)
	params.AddMetadata("user_id", req.UserID)
	if mode == ModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"plan":    req.Plan,
				"user_id": req.UserID,
			},
		}
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	if s.URL == "" {
		return nil, fmt.Errorf("%s: provider returned no url: %w", op, apperr.ErrUpstreamUnavailable)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL, Mode: string(s.Mode)}, nil
}

// classify отделяет отказ провайдера в запросе от его недоступности.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := stripeErr.HTTPStatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return fmt.Errorf("provider responded %d: %s: %w", code, stripeErr.Msg, apperr.ErrInvalidArgument)
		}
		return fmt.Errorf("provider responded %d: %s: %w", code, stripeErr.Msg, apperr.ErrUpstreamUnavailable)
	}
	return errors.Join(apperr.ErrUpstreamUnavailable, err)
}
