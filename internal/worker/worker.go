// Package worker consumes order events and sends customer notifications.
// Every event is gated through a processed-events table so redeliveries
// never notify twice.
package worker

import (
	"context"
	"sync"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// EventStore persists which events have already been handled.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker turns order events into customer notifications.
// Delivery here is a structured log line; a mail or push provider plugs in
// behind the same handlers.
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	store    EventStore
	logger   *zap.Logger

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewNotificationWorker(consumer *broker.Consumer, store EventStore) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		store:    store,
		logger:   util.GetLogger(),
	}

	w.handler.OnOrderCreated(w.handleOrderCreated)
	w.handler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.handler.OnOrderCancelled(w.handleOrderCancelled)
	return w
}

// Start begins consuming in the background until Stop is called or the
// context is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.done.Add(1)
	go func() {
		defer w.done.Done()
		if err := w.consumer.StartConsuming(ctx, w.handler.HandleMessage); err != nil && ctx.Err() == nil {
			w.logger.Error("Notification consumer stopped", zap.Error(err))
		}
	}()
}

// Stop cancels consumption and waits for the in-flight message to finish.
func (w *NotificationWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.done.Wait()
	if err := w.consumer.Close(); err != nil {
		w.logger.Warn("Error closing consumer", zap.Error(err))
	}
}

// alreadyProcessed reports whether the event was handled before and marks
// it when it was not. A store error fails the message so it is retried.
func (w *NotificationWorker) alreadyProcessed(ctx context.Context, base models.BaseEvent) (bool, error) {
	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return false, err
	}
	if processed {
		w.logger.Debug("Skipping already processed event",
			zap.String("event_id", base.EventID),
			zap.String("event_type", base.EventType))
		return true, nil
	}
	return false, w.store.MarkEventProcessed(ctx, base.EventID, base.EventType)
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	done, err := w.alreadyProcessed(ctx, event.BaseEvent)
	if err != nil || done {
		return err
	}

	w.logger.Info("Notification: order confirmation",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.Float64("total_price", event.TotalPrice),
		zap.Int("item_count", len(event.Items)))
	util.NotificationsSentTotal.WithLabelValues("order_confirmation").Inc()
	return nil
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	done, err := w.alreadyProcessed(ctx, event.BaseEvent)
	if err != nil || done {
		return err
	}

	w.logger.Info("Notification: order status update",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("from", event.FromStatus),
		zap.String("to", event.ToStatus))
	util.NotificationsSentTotal.WithLabelValues("status_update").Inc()
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	done, err := w.alreadyProcessed(ctx, event.BaseEvent)
	if err != nil || done {
		return err
	}

	w.logger.Info("Notification: order cancelled",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("reason", event.Reason))
	util.NotificationsSentTotal.WithLabelValues("cancellation").Inc()
	return nil
}
