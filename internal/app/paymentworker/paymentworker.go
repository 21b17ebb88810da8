// Package paymentworker обрабатывает платёжные события, которые вебхук
// поставил в очередь RabbitMQ.
package paymentworker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mentor-exchange/internal/app/mentorexchange"
	"github.com/magabrotheeeer/mentor-exchange/internal/config"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// Processor применяет событие к журналу.
type Processor interface {
	Process(ctx context.Context, event models.PaymentEvent) error
}

// App потребляет очередь платёжных событий.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	policy  rabbitmq.RetryPolicy
	handler rabbitmq.Handler
	closers []io.Closer
	logger  *slog.Logger
}

// New подключается к хранилищу, кэшу и RabbitMQ.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, storeCloser, err := mentorexchange.OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	snapshots, cacheCloser, err := mentorexchange.OpenCache(ctx, cfg.Redis, logger)
	if err != nil {
		_ = storeCloser.Close()
		return nil, err
	}
	core := mentorexchange.NewCore(cfg, store, snapshots, logger)

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = cacheCloser.Close()
		_ = storeCloser.Close()
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.PaymentQueues(cfg.RabbitMQ.Queue))
	if err != nil {
		_ = conn.Close()
		_ = cacheCloser.Close()
		_ = storeCloser.Close()
		return nil, err
	}

	return &App{
		conn:  conn,
		ch:    ch,
		queue: cfg.RabbitMQ.Queue,
		policy: rabbitmq.RetryPolicy{
			MaxDeliveries: cfg.RabbitMQ.MaxDeliveries,
			Delay:         cfg.RabbitMQ.RedeliveryDelay,
		},
		handler: Handle(core.Payments),
		closers: []io.Closer{storeCloser, cacheCloser},
		logger:  logger,
	}, nil
}

// Handle возвращает обработчик сообщений очереди. Сообщение, которое не
// удалось разобрать, помечается apperr.ErrInvalidArgument и отбрасывается.
func Handle(p Processor) rabbitmq.Handler {
	return func(ctx context.Context, body []byte) error {
		const op = "paymentworker.Handle"

		var event models.PaymentEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("%s: %w: %v", op, apperr.ErrInvalidArgument, err)
		}
		if err := p.Process(ctx, event); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
}

// Run потребляет очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, a.queue, a.logger, a.policy, a.handler); err != nil {
		a.logger.Error("failed to start payment events consumer", sl.Err(err))
		return err
	}
	a.logger.Info("payment worker started", slog.String("queue", a.queue))

	<-ctx.Done()
	a.logger.Info("payment worker shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	return nil
}
