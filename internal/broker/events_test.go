package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMessage(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestHandleMessageRoutesByType(t *testing.T) {
	handler := NewEventHandler()

	var gotCreated *models.OrderCreatedEvent
	var gotCancelled *models.OrderCancelledEvent

	handler.OnOrderCreated(func(_ context.Context, e *models.OrderCreatedEvent) error {
		gotCreated = e
		return nil
	})
	handler.OnOrderCancelled(func(_ context.Context, e *models.OrderCancelledEvent) error {
		gotCancelled = e
		return nil
	})

	created := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "ev-1",
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:    10,
		UserID:     3,
		TotalPrice: 99.5,
	}

	err := handler.HandleMessage(context.Background(), makeMessage(t, created))
	require.NoError(t, err)
	require.NotNil(t, gotCreated)
	assert.Equal(t, int64(10), gotCreated.OrderID)
	assert.Nil(t, gotCancelled)

	cancelled := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "ev-2",
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: 10,
		Reason:  "requested by user",
	}

	err = handler.HandleMessage(context.Background(), makeMessage(t, cancelled))
	require.NoError(t, err)
	require.NotNil(t, gotCancelled)
	assert.Equal(t, "requested by user", gotCancelled.Reason)
}

func TestHandleMessageUnknownTypeIsNoop(t *testing.T) {
	handler := NewEventHandler()

	msg := makeMessage(t, models.BaseEvent{EventID: "ev-3", EventType: "SOMETHING_ELSE"})
	assert.NoError(t, handler.HandleMessage(context.Background(), msg))
}

func TestHandleMessageBadPayload(t *testing.T) {
	handler := NewEventHandler()
	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
