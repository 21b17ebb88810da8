package paymentprovider

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// SignatureHeader — заголовок с подписью события.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance — допустимый возраст подписи.
const DefaultTolerance = webhook.DefaultTolerance

// Verifier проверяет подпись вебхука и разбирает событие.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier создаёт проверяющего с секретом вебхука.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// ConstructEvent проверяет подпись payload и возвращает нормализованное событие.
// Ошибки подписи оборачивают apperr.ErrSignatureInvalid.
func (v *Verifier) ConstructEvent(payload []byte, header string) (models.PaymentEvent, error) {
	if err := v.VerifySignature(payload, header); err != nil {
		return models.PaymentEvent{}, err
	}
	return ParseEvent(payload)
}

// VerifySignature проверяет заголовок вида "t=<unix>,v1=<hex>[,v1=...]"
// и возраст подписи.
func (v *Verifier) VerifySignature(payload []byte, header string) error {
	if v.secret == "" {
		return fmt.Errorf("webhook secret is not configured: %w", apperr.ErrSignatureInvalid)
	}
	if header == "" {
		return fmt.Errorf("missing %s header: %w", SignatureHeader, apperr.ErrSignatureInvalid)
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), apperr.ErrSignatureInvalid)
	}
	return nil
}

// Sign вычисляет подпись v1 для payload с меткой времени ts.
func Sign(secret string, ts int64, payload []byte) []byte {
	return webhook.ComputeSignature(time.Unix(ts, 0), payload, secret)
}

// SignatureHeaderValue собирает значение заголовка подписи.
func SignatureHeaderValue(secret string, ts int64, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(Sign(secret, ts, payload)))
}

// ParseEvent разбирает тело события. Для неподдерживаемых типов заполняются
// только ID и Type.
func ParseEvent(payload []byte) (models.PaymentEvent, error) {
	var env stripe.Event
	if err := json.Unmarshal(payload, &env); err != nil {
		return models.PaymentEvent{}, fmt.Errorf("invalid event payload: %w", apperr.ErrInvalidArgument)
	}
	if env.ID == "" || env.Type == "" {
		return models.PaymentEvent{}, fmt.Errorf("event id and type are required: %w", apperr.ErrInvalidArgument)
	}

	event := models.PaymentEvent{ID: env.ID, Type: string(env.Type)}
	if !event.Supported() {
		return event, nil
	}
	if env.Data == nil || len(env.Data.Raw) == 0 {
		return models.PaymentEvent{}, fmt.Errorf("event %s has no object: %w", env.ID, apperr.ErrInvalidArgument)
	}

	switch event.Type {
	case models.EventCheckoutCompleted:
		var obj checkoutObject
		if err := json.Unmarshal(env.Data.Raw, &obj); err != nil {
			return models.PaymentEvent{}, fmt.Errorf("invalid checkout object: %w", apperr.ErrInvalidArgument)
		}
		event.UserID = obj.ClientReferenceID
		if event.UserID == "" {
			event.UserID = obj.Metadata["user_id"]
		}
		event.Plan = obj.Metadata["plan"]
		event.AmountTotal = obj.AmountTotal
		event.Currency = obj.Currency

	case models.EventInvoicePaid:
		var obj invoiceObject
		if err := json.Unmarshal(env.Data.Raw, &obj); err != nil {
			return models.PaymentEvent{}, fmt.Errorf("invalid invoice object: %w", apperr.ErrInvalidArgument)
		}
		if len(obj.Lines.Data) > 0 {
			event.UserID = obj.Lines.Data[0].Metadata["user_id"]
			event.Plan = obj.Lines.Data[0].Metadata["plan"]
		}
		if event.UserID == "" {
			event.UserID = obj.SubscriptionDetails.Metadata["user_id"]
		}
		event.AmountTotal = obj.AmountPaid
		event.Currency = obj.Currency
	}

	return event, nil
}
