package rabbitmq

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestPaymentQueues(t *testing.T) {
	queues := PaymentQueues("payment.events")

	assert.Equal(t, []QueueConfig{{QueueName: "payment.events", RoutingKey: RoutingKey, DeadLetter: true}}, queues)
	assert.Equal(t, "payment.events.dead", DeadLetterQueue(queues[0].QueueName))
	assert.Equal(t, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": RoutingKey,
	}, queues[0].args())
}

func TestQueueConfig_NoDeadLetter(t *testing.T) {
	assert.Nil(t, QueueConfig{QueueName: "q", RoutingKey: "k"}.args())
}
