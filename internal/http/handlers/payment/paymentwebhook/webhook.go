// Package paymentwebhook принимает подписанные события платёжного провайдера.
//
// Подпись проверяется до разбора тела. Поддерживаемые события передаются
// диспетчеру: либо обработчику событий напрямую, либо в очередь воркера.
// Неподдерживаемые типы подтверждаются без обработки.
package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
	"github.com/magabrotheeeer/mentor-exchange/internal/paymentprovider"
)

const maxBodyBytes = 1 << 20

// Verifier проверяет подпись и разбирает событие.
type Verifier interface {
	ConstructEvent(payload []byte, header string) (models.PaymentEvent, error)
}

// Dispatcher передаёт событие на обработку.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.PaymentEvent) error
}

// DispatcherFunc позволяет использовать функцию как Dispatcher.
type DispatcherFunc func(ctx context.Context, event models.PaymentEvent) error

// Dispatch вызывает f(ctx, event).
func (f DispatcherFunc) Dispatch(ctx context.Context, event models.PaymentEvent) error {
	return f(ctx, event)
}

// Handler обрабатывает вебхук.
type Handler struct {
	log        *slog.Logger
	verifier   Verifier
	dispatcher Dispatcher
}

// New создает Handler.
func New(log *slog.Logger, verifier Verifier, dispatcher Dispatcher) *Handler {
	return &Handler{
		log:        log,
		verifier:   verifier,
		dispatcher: dispatcher,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Проверяет подпись Stripe-Signature. Ошибка подписи — 400, неизвестный тип события — 200.
// @Tags Payments
// @Accept json
// @Produce plain
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {string} string "ok"
// @Failure 400 {string} string "Webhook Error: ..."
// @Failure 500 {string} string "processing failed"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		http.Error(w, "Webhook Error: cannot read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event, err := h.verifier.ConstructEvent(body, r.Header.Get(paymentprovider.SignatureHeader))
	if err != nil {
		log.Warn("rejected webhook", sl.Err(err))
		http.Error(w, fmt.Sprintf("Webhook Error: %s", webhookMessage(err)), http.StatusBadRequest)
		return
	}

	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	if !event.Supported() {
		log.Info("ignored webhook event")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	log.Info("webhook accepted")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func webhookMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrSignatureInvalid):
		return "signature verification failed: " + err.Error()
	case errors.Is(err, apperr.ErrInvalidArgument):
		return "invalid payload"
	default:
		return err.Error()
	}
}
