package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
)

// RetryCountHeader хранит число неудачных попыток обработки сообщения.
const RetryCountHeader = "x-retry-count"

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// RetryPolicy ограничивает повторную обработку сообщения. После MaxDeliveries
// неудачных попыток сообщение уходит в dead-letter очередь. Перед n-й
// повторной публикацией выдерживается пауза Delay*n.
type RetryPolicy struct {
	MaxDeliveries int
	Delay         time.Duration
}

// DefaultRetryPolicy используется, когда политика не задана.
var DefaultRetryPolicy = RetryPolicy{MaxDeliveries: 5, Delay: time.Second}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxDeliveries <= 0 {
		p.MaxDeliveries = DefaultRetryPolicy.MaxDeliveries
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// ConsumerMessage создает потребителя сообщений из очереди RabbitMQ.
// Успешно обработанные сообщения подтверждаются. Сообщения, которые нельзя
// разобрать (apperr.ErrInvalidArgument), уходят в dead-letter очередь,
// остальные ошибки повторяются по policy.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, policy RetryPolicy, handler Handler) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	settler := NewSettler(log, ch, queueName, policy)

	sem := make(chan struct{}, prefetch)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					settler.Settle(ctx, d, handler(ctx, d.Body))
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Settler подтверждает, повторяет или отбрасывает доставку по результату
// обработки.
type Settler struct {
	log    *slog.Logger
	ch     Channel
	queue  string
	policy RetryPolicy
}

// NewSettler создаёт Settler. Повторные попытки публикуются через ch
// напрямую в queue.
func NewSettler(log *slog.Logger, ch Channel, queue string, policy RetryPolicy) *Settler {
	return &Settler{log: log, ch: ch, queue: queue, policy: policy.normalize()}
}

// Settle завершает доставку d. Повтор публикуется заново с увеличенным
// RetryCountHeader, исходная доставка подтверждается после публикации.
func (s *Settler) Settle(ctx context.Context, d amqp.Delivery, err error) {
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			s.log.Error("failed to ack message", sl.Err(ackErr))
		}
		return
	}

	if errors.Is(err, apperr.ErrInvalidArgument) {
		s.log.Error("dropping malformed message", sl.Err(err))
		s.nack(d, false)
		return
	}

	attempt := retryCount(d.Headers) + 1
	if attempt >= s.policy.MaxDeliveries {
		s.log.Error("giving up on message", sl.Err(err), slog.Int("attempts", attempt))
		s.nack(d, false)
		return
	}

	s.log.Warn("failed to handle message, retrying", sl.Err(err), slog.Int("attempt", attempt))

	timer := time.NewTimer(s.policy.Delay * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		s.nack(d, true)
		return
	}

	if pubErr := s.ch.Publish("", s.queue, false, false, retryPublishing(d, attempt)); pubErr != nil {
		s.log.Error("failed to republish message", sl.Err(pubErr))
		s.nack(d, true)
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		s.log.Error("failed to ack retried message", sl.Err(ackErr))
	}
}

func (s *Settler) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		s.log.Error("failed to nack message", sl.Err(err), slog.Bool("requeue", requeue))
	}
}

func retryPublishing(d amqp.Delivery, attempt int) amqp.Publishing {
	headers := make(amqp.Table, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[RetryCountHeader] = int32(attempt)

	return amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		MessageId:    d.MessageId,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
	}
}

func retryCount(headers amqp.Table) int {
	switch v := headers[RetryCountHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
