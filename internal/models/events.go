package models

import "time"

// Event types published on the order topic
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderCreatedEvent published when an order is created and its stock has
// been reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	TotalPrice float64         `json:"total_price"`
	Items      []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published on every admin status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     int64      `json:"order_id"`
	UserID      int64      `json:"user_id"`
	FromStatus  string     `json:"from_status"`
	ToStatus    string     `json:"to_status"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// OrderCancelledEvent published when an order is cancelled and its stock
// restored
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64           `json:"order_id"`
	UserID  int64           `json:"user_id"`
	Reason  string          `json:"reason"`
	Items   []OrderItemData `json:"items"`
}
