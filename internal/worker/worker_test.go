package worker

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventStore struct {
	processed map[string]string
	failing   bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{processed: make(map[string]string)}
}

func (f *fakeEventStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	if f.failing {
		return false, errors.New("store unavailable")
	}
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeEventStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	if f.failing {
		return errors.New("store unavailable")
	}
	f.processed[eventID] = eventType
	return nil
}

func createdEvent(id string) *models.OrderCreatedEvent {
	return &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   id,
			EventType: models.EventTypeOrderCreated,
		},
		OrderID: 1,
		UserID:  2,
	}
}

func TestHandleOrderCreatedIsIdempotent(t *testing.T) {
	store := newFakeEventStore()
	w := NewNotificationWorker(nil, store)

	require.NoError(t, w.handleOrderCreated(context.Background(), createdEvent("evt-1")))
	require.NoError(t, w.handleOrderCreated(context.Background(), createdEvent("evt-1")))

	assert.Len(t, store.processed, 1)
	assert.Equal(t, models.EventTypeOrderCreated, store.processed["evt-1"])
}

func TestHandlerFailsWhenStoreUnavailable(t *testing.T) {
	store := newFakeEventStore()
	store.failing = true
	w := NewNotificationWorker(nil, store)

	// A store failure must surface so the message is retried, not dropped.
	err := w.handleOrderCreated(context.Background(), createdEvent("evt-1"))
	require.Error(t, err)
}

func TestDistinctEventsAllProcessed(t *testing.T) {
	store := newFakeEventStore()
	w := NewNotificationWorker(nil, store)

	require.NoError(t, w.handleOrderCreated(context.Background(), createdEvent("evt-1")))
	require.NoError(t, w.handleOrderStatusChanged(context.Background(), &models.OrderStatusChangedEvent{
		BaseEvent:  models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeOrderStatusChanged},
		OrderID:    1,
		FromStatus: models.OrderStatusProcessing,
		ToStatus:   models.OrderStatusShipped,
	}))
	require.NoError(t, w.handleOrderCancelled(context.Background(), &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-3", EventType: models.EventTypeOrderCancelled},
		OrderID:   1,
		Reason:    "cancelled by customer",
	}))

	assert.Len(t, store.processed, 3)
}
