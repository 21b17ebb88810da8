// Package rabbitmq доставляет платёжные события от вебхука до воркера через
// RabbitMQ: подключение с повторами, объявление топологии, публикация и
// потребление сообщений.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, делая до attempts попыток с паузой delay.
// Отмена ctx прерывает ожидание между попытками.
func Connect(ctx context.Context, url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"

	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%s: %d attempts: %w", op, attempts, lastErr)
}

// SetupChannel открывает канал и объявляет топологию: обменник событий,
// обменник отброшенных сообщений и очереди queues с их dead-letter очередями.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: set qos: %w", op, err)
	}
	if err := declareTopology(ch, queues); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func declareTopology(ch *amqp.Channel, queues []QueueConfig) error {
	for _, name := range []string{Exchange, DeadLetterExchange} {
		if err := ch.ExchangeDeclare(name, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	for _, q := range queues {
		if q.DeadLetter {
			dead := DeadLetterQueue(q.QueueName)
			if err := declareBound(ch, dead, q.RoutingKey, DeadLetterExchange, nil); err != nil {
				return err
			}
		}
		if err := declareBound(ch, q.QueueName, q.RoutingKey, Exchange, q.args()); err != nil {
			return err
		}
	}
	return nil
}

func declareBound(ch *amqp.Channel, queue, key, exchange string, args amqp.Table) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s with key %s: %w", queue, exchange, key, err)
	}
	return nil
}
