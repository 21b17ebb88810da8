package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

type AckMock struct {
	mock.Mock
}

func (m *AckMock) Ack(_ uint64, multiple bool) error {
	return m.Called(multiple).Error(0)
}

func (m *AckMock) Nack(_ uint64, multiple, requeue bool) error {
	return m.Called(multiple, requeue).Error(0)
}

func (m *AckMock) Reject(_ uint64, requeue bool) error {
	return m.Called(requeue).Error(0)
}

func TestPublisher_Dispatch(t *testing.T) {
	amount := int64(2500)
	event := models.PaymentEvent{ID: "evt_1", Type: models.EventCheckoutCompleted, Plan: "5h", UserID: "u1", AmountTotal: &amount}

	ch := new(ChannelMock)
	ch.On("Publish", Exchange, RoutingKey, false, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
		var got models.PaymentEvent
		if err := json.Unmarshal(msg.Body, &got); err != nil {
			return false
		}
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			got.ID == event.ID && got.UserID == event.UserID && *got.AmountTotal == amount
	})).Return(nil).Once()

	err := NewPublisher(ch).Dispatch(context.Background(), event)
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublisher_DispatchErrors(t *testing.T) {
	t.Run("publish fails", func(t *testing.T) {
		ch := new(ChannelMock)
		ch.On("Publish", Exchange, RoutingKey, false, false, mock.Anything).Return(errors.New("channel closed")).Once()

		err := NewPublisher(ch).Dispatch(context.Background(), models.PaymentEvent{ID: "evt_1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ch := new(ChannelMock)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewPublisher(ch).Dispatch(ctx, models.PaymentEvent{ID: "evt_1"})
		assert.ErrorIs(t, err, context.Canceled)
		ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPublishMessage_MarshalError(t *testing.T) {
	badMsg := struct {
		Ch chan int `json:"ch"`
	}{
		Ch: make(chan int),
	}

	err := PublishMessage(new(ChannelMock), "", "q", badMsg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
}

func delivery(ack *AckMock, retries any) amqp.Delivery {
	d := amqp.Delivery{
		Acknowledger: ack,
		ContentType:  "application/json",
		MessageId:    "evt_1",
		Body:         []byte(`{"id":"evt_1"}`),
	}
	if retries != nil {
		d.Headers = amqp.Table{RetryCountHeader: retries, "x-origin": "webhook"}
	}
	return d
}

func retriedWith(count int32) any {
	return mock.MatchedBy(func(msg amqp.Publishing) bool {
		return msg.Headers[RetryCountHeader] == count &&
			msg.Headers["x-origin"] == "webhook" &&
			msg.MessageId == "evt_1" &&
			msg.DeliveryMode == amqp.Persistent &&
			string(msg.Body) == `{"id":"evt_1"}`
	})
}

func TestSettler_Settle(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	transient := errors.Join(apperr.ErrUpstreamUnavailable, errors.New("db down"))
	policy := RetryPolicy{MaxDeliveries: 3}

	tests := []struct {
		name    string
		err     error
		retries any
		setup   func(a *AckMock, ch *ChannelMock)
	}{
		{
			name:  "success acks",
			setup: func(a *AckMock, _ *ChannelMock) { a.On("Ack", false).Return(nil).Once() },
		},
		{
			name:  "ack failure is only logged",
			setup: func(a *AckMock, _ *ChannelMock) { a.On("Ack", false).Return(errors.New("closed")).Once() },
		},
		{
			name:  "malformed message is dead-lettered",
			err:   apperr.ErrInvalidArgument,
			setup: func(a *AckMock, _ *ChannelMock) { a.On("Nack", false, false).Return(nil).Once() },
		},
		{
			name: "first failure is republished with counter",
			err:  transient,
			setup: func(a *AckMock, ch *ChannelMock) {
				ch.On("Publish", "", "payment.events", false, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
					return msg.Headers[RetryCountHeader] == int32(1) && msg.MessageId == "evt_1"
				})).Return(nil).Once()
				a.On("Ack", false).Return(nil).Once()
			},
		},
		{
			name:    "counter from broker is incremented",
			err:     transient,
			retries: int64(1),
			setup: func(a *AckMock, ch *ChannelMock) {
				ch.On("Publish", "", "payment.events", false, false, retriedWith(2)).Return(nil).Once()
				a.On("Ack", false).Return(nil).Once()
			},
		},
		{
			name:    "exhausted retries are dead-lettered",
			err:     transient,
			retries: int32(2),
			setup:   func(a *AckMock, _ *ChannelMock) { a.On("Nack", false, false).Return(nil).Once() },
		},
		{
			name: "republish failure requeues original",
			err:  transient,
			setup: func(a *AckMock, ch *ChannelMock) {
				ch.On("Publish", "", "payment.events", false, false, mock.Anything).Return(errors.New("channel closed")).Once()
				a.On("Nack", false, true).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := new(AckMock)
			ch := new(ChannelMock)
			tt.setup(ack, ch)

			NewSettler(log, ch, "payment.events", policy).Settle(context.Background(), delivery(ack, tt.retries), tt.err)

			ack.AssertExpectations(t)
			ch.AssertExpectations(t)
		})
	}
}

func TestSettler_ShutdownDuringBackoffRequeues(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := new(AckMock)
	ack.On("Nack", false, true).Return(nil).Once()
	ch := new(ChannelMock)

	settler := NewSettler(log, ch, "payment.events", RetryPolicy{MaxDeliveries: 3, Delay: time.Hour})
	settler.Settle(ctx, delivery(ack, nil), apperr.ErrUpstreamUnavailable)

	ack.AssertExpectations(t)
	ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryPolicy_Normalize(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy.MaxDeliveries, RetryPolicy{}.normalize().MaxDeliveries)
	assert.Equal(t, time.Duration(0), RetryPolicy{Delay: -time.Second}.normalize().Delay)
	assert.Equal(t, 7, RetryPolicy{MaxDeliveries: 7}.normalize().MaxDeliveries)
}

func TestPaymentQueues(t *testing.T) {
	queues := PaymentQueues("payment.events")

	require.Len(t, queues, 1)
	assert.Equal(t, "payment.events", queues[0].QueueName)
	assert.Equal(t, RoutingKey, queues[0].RoutingKey)
}
