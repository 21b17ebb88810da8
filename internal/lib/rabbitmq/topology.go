package rabbitmq

import "github.com/streadway/amqp"

const (
	// Exchange — обменник платёжных событий.
	Exchange = "payments"
	// DeadLetterExchange получает сообщения, отклонённые без повтора.
	DeadLetterExchange = "payments.dlx"
	// RoutingKey — ключ маршрутизации платёжных событий.
	RoutingKey = "payment.event"

	prefetch = 10
)

// QueueConfig описывает очередь и её ключ маршрутизации. При DeadLetter
// отклонённые сообщения уходят в очередь DeadLetterQueue(QueueName).
type QueueConfig struct {
	QueueName  string
	RoutingKey string
	DeadLetter bool
}

// PaymentQueues возвращает очереди воркера платёжных событий.
func PaymentQueues(queue string) []QueueConfig {
	return []QueueConfig{
		{QueueName: queue, RoutingKey: RoutingKey, DeadLetter: true},
	}
}

// DeadLetterQueue — имя очереди отброшенных сообщений для queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}

func (q QueueConfig) args() amqp.Table {
	if !q.DeadLetter {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": q.RoutingKey,
	}
}
