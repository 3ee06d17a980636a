package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmarket/api/internal/services"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisher(writer)

	err := publisher.PublishOrderEvent(context.Background(), services.OrderEvent{
		Type:          "order.placed",
		OrderID:       "ord_42",
		BuyerID:       "buyer-1",
		SellerID:      "seller-9",
		CurrentStatus: services.OrderStatus("placed"),
		OccurredAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "ord_42", string(msg.Key))

	var payload Message
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "order.placed", payload.Type)
	assert.Equal(t, "seller-9", payload.SellerID)
	assert.Empty(t, payload.From)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "order.placed", headers["eventType"])
	assert.Equal(t, "placed", headers["status"])

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	publisher := newKafkaPublisher(&fakeWriter{err: boom})

	err := publisher.PublishOrderEvent(context.Background(), services.OrderEvent{Type: "order.placed", OrderID: "ord_1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisherValidatesArguments(t *testing.T) {
	_, err := NewKafkaPublisher("", "localhost:9092")
	assert.Error(t, err)
	_, err = NewKafkaPublisher("order-events")
	assert.Error(t, err)

	publisher, err := NewKafkaPublisher("order-events", "localhost:9092")
	require.NoError(t, err)
	assert.NoError(t, publisher.Close())
}
