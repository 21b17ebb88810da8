// Package payment превращает события платёжного провайдера в операции
// кредитного журнала. Каждое событие применяется не более одного раза:
// отметка об обработке пишется в той же записи хранилища, что и изменение
// кошелька, поэтому сбой на любом шаге оставляет событие необработанным и
// повторная доставка провайдером применит его заново.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/metrics"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// DefaultPassDurationDays — срок действия Learning Pass после оплаты счёта.
const DefaultPassDurationDays = 30

// PlanCredits — количество кредитов для разовых тарифов.
var PlanCredits = map[string]int64{
	"1h":  1,
	"5h":  5,
	"10h": 10,
}

// PassPlan — тариф подписки Learning Pass.
const PassPlan = "pass"

// Ledger — операции кошелька, которые вызывает обработчик событий. Отметка
// события, переданная в операцию, сохраняется вместе с ней; повтор даёт
// apperr.ErrAlreadyProcessed.
type Ledger interface {
	Credit(ctx context.Context, userID string, amount int64, src models.CreditSource) (*models.Wallet, error)
	ActivatePass(ctx context.Context, userID string, durationDays int, event *models.ProcessedEvent) (*models.Wallet, error)
}

// EventRepository отмечает события, которые не меняют кошелёк.
type EventRepository interface {
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// Processor обрабатывает платёжные события.
type Processor struct {
	ledger           Ledger
	events           EventRepository
	log              *slog.Logger
	passDurationDays int
}

// New создаёт обработчик. passDurationDays ≤ 0 означает срок по умолчанию.
func New(ledger Ledger, events EventRepository, log *slog.Logger, passDurationDays int) *Processor {
	if passDurationDays <= 0 {
		passDurationDays = DefaultPassDurationDays
	}
	return &Processor{
		ledger:           ledger,
		events:           events,
		log:              log,
		passDurationDays: passDurationDays,
	}
}

// Process применяет событие к журналу. Повторное событие с тем же
// идентификатором ничего не меняет и завершается успешно. Неподдерживаемые
// типы событий игнорируются.
func (p *Processor) Process(ctx context.Context, event models.PaymentEvent) error {
	const op = "services.payment.Process"

	log := p.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	if event.ID == "" {
		metrics.PaymentEvents.WithLabelValues(event.Type, "rejected").Inc()
		return fmt.Errorf("%s: empty event id: %w", op, apperr.ErrInvalidArgument)
	}
	if !event.Supported() {
		log.Debug("ignoring unsupported event")
		metrics.PaymentEvents.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}

	if err := p.apply(ctx, log, event); err != nil {
		if errors.Is(err, apperr.ErrAlreadyProcessed) {
			log.Info("event already processed")
			metrics.PaymentEvents.WithLabelValues(event.Type, "duplicate").Inc()
			return nil
		}
		log.Error("failed to process event", sl.Err(err))
		metrics.PaymentEvents.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}

	metrics.PaymentEvents.WithLabelValues(event.Type, "processed").Inc()
	return nil
}

func (p *Processor) apply(ctx context.Context, log *slog.Logger, event models.PaymentEvent) error {
	if event.UserID == "" {
		log.Warn("event has no user id, ignoring")
		return p.markIgnored(ctx, event)
	}

	switch event.Type {
	case models.EventCheckoutCompleted:
		return p.applyCheckout(ctx, log, event)
	case models.EventInvoicePaid:
		if _, err := p.ledger.ActivatePass(ctx, event.UserID, p.passDurationDays, event.Mark()); err != nil {
			return err
		}
		log.Info("learning pass activated", slog.String("user_id", event.UserID), slog.Int("days", p.passDurationDays))
	}
	return nil
}

func (p *Processor) applyCheckout(ctx context.Context, log *slog.Logger, event models.PaymentEvent) error {
	credits, ok := PlanCredits[event.Plan]
	if !ok {
		// Подписка pass оформляется через checkout, но активируется счётом.
		log.Warn("checkout plan does not grant credits, ignoring", slog.String("plan", event.Plan))
		return p.markIgnored(ctx, event)
	}

	src := models.CreditSource{
		Type: models.TransactionPurchase,
		Metadata: map[string]string{
			"plan":     event.Plan,
			"event_id": event.ID,
		},
		Event: event.Mark(),
	}
	if event.AmountTotal != nil {
		amount := float64(*event.AmountTotal) / 100
		src.AmountCurrency = &amount
		src.Metadata["amount_total"] = strconv.FormatInt(*event.AmountTotal, 10)
	}
	if event.Currency != "" {
		src.Metadata["currency"] = event.Currency
	}

	if _, err := p.ledger.Credit(ctx, event.UserID, credits, src); err != nil {
		if errors.Is(err, apperr.ErrInvalidArgument) {
			log.Warn("checkout rejected by ledger, ignoring", sl.Err(err))
			return p.markIgnored(ctx, event)
		}
		return err
	}
	log.Info("credits purchased",
		slog.String("user_id", event.UserID),
		slog.String("plan", event.Plan),
		slog.Int64("credits", credits),
	)
	return nil
}

// markIgnored отмечает событие, которое ничего не меняет в журнале, чтобы
// повторная доставка не разбиралась заново.
func (p *Processor) markIgnored(ctx context.Context, event models.PaymentEvent) error {
	fresh, err := p.events.MarkEventProcessed(ctx, event.ID, event.Type)
	if err != nil {
		return err
	}
	if !fresh {
		return fmt.Errorf("%s: %w", event.ID, apperr.ErrAlreadyProcessed)
	}
	return nil
}

// Plans возвращает тарифы, доступные для оплаты.
func Plans() []string {
	return []string{"1h", "5h", "10h", PassPlan}
}

// KnownPlan сообщает, существует ли тариф.
func KnownPlan(plan string) bool {
	if plan == PassPlan {
		return true
	}
	_, ok := PlanCredits[plan]
	return ok
}
