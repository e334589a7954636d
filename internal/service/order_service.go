package service

import (
	"context"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the slice of the database the order engine needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string, deliveredAt *time.Time, trackingNumber *string) error
	CancelOrder(ctx context.Context, order *models.Order) error
}

// ProductBatchReader resolves the live catalog rows an order snapshot is
// built from.
type ProductBatchReader interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// OrderEventPublisher emits order lifecycle events. A nil publisher
// disables eventing.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// StockMirror keeps the fast-path stock counters in step with the reserved
// and released quantities. May be nil.
type StockMirror interface {
	MirrorReserve(ctx context.Context, items []models.OrderItem)
	MirrorRelease(ctx context.Context, items []models.OrderItem)
}

// OrderService drives the order lifecycle: creation with atomic stock
// reservation, the admin status machine, and owner cancellation.
type OrderService struct {
	store     OrderStore
	catalog   ProductBatchReader
	publisher OrderEventPublisher
	mirror    StockMirror
	logger    *zap.Logger
}

func NewOrderService(store OrderStore, catalog ProductBatchReader, publisher OrderEventPublisher, mirror StockMirror) *OrderService {
	return &OrderService{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
		mirror:    mirror,
		logger:    util.GetLogger(),
	}
}

// OrderItemRequest names a product and how many units to buy. Prices and
// snapshots come from the live catalog, never from the caller.
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// ShippingAddressRequest captures the delivery destination
type ShippingAddressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	Country string `json:"country" binding:"required"`
	ZipCode string `json:"zip_code" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
}

// PaymentInfoRequest names the payment method and optional gateway result
type PaymentInfoRequest struct {
	Type      string  `json:"type" binding:"required,oneof=card cash"`
	GatewayID *string `json:"id"`
	Status    *string `json:"status"`
}

// CreateOrderRequest creates an order from explicit line items.
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" binding:"required"`
	ShippingAddress ShippingAddressRequest `json:"shipping_address" binding:"required"`
	PaymentInfo     PaymentInfoRequest     `json:"payment_info" binding:"required"`
	ItemsPrice      float64                `json:"items_price" binding:"required"`
	TaxPrice        float64                `json:"tax_price"`
	ShippingPrice   float64                `json:"shipping_price"`
	TotalPrice      float64                `json:"total_price" binding:"required"`
	OrderNotes      *string                `json:"order_notes"`
}

// UpdateStatusRequest moves an order along the status machine
type UpdateStatusRequest struct {
	Status         string  `json:"status" binding:"required"`
	TrackingNumber *string `json:"tracking_number"`
}

// CreateOrder snapshots the requested products, reserves their stock
// atomically and persists the order. Any single product with insufficient
// stock fails the whole order and leaves every stock level untouched.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, apperr.Validationf("order must contain at least one item")
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, apperr.NotFoundf("product not found: %d", item.ProductID)
		}
		if product.Stock < item.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			util.StockReservationsFailed.WithLabelValues("precheck").Inc()
			return nil, apperr.InsufficientStockf("not enough stock for product: %s", product.Name)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.ImageURL,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
	}

	tracking := "TRK-" + uuid.NewString()[:8]
	order := &models.Order{
		UserID: userID,
		Items:  items,
		ShippingAddress: models.ShippingAddress{
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			Country: req.ShippingAddress.Country,
			ZipCode: req.ShippingAddress.ZipCode,
			Phone:   req.ShippingAddress.Phone,
		},
		PaymentInfo: models.PaymentInfo{
			Type:      req.PaymentInfo.Type,
			GatewayID: req.PaymentInfo.GatewayID,
			Status:    req.PaymentInfo.Status,
		},
		ItemsPrice:     req.ItemsPrice,
		TaxPrice:       req.TaxPrice,
		ShippingPrice:  req.ShippingPrice,
		TotalPrice:     req.TotalPrice,
		Status:         models.OrderStatusProcessing,
		TrackingNumber: &tracking,
		OrderNotes:     req.OrderNotes,
		RefundStatus:   models.RefundStatusNone,
	}

	timer := time.Now()
	if err := s.store.CreateOrder(ctx, order); err != nil {
		if apperr.KindOf(err) == apperr.KindInsufficientStock {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			util.StockReservationsFailed.WithLabelValues("reserve").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("store").Inc()
		}
		return nil, err
	}
	util.StockReserveLatency.Observe(time.Since(timer).Seconds())
	util.OrdersCreatedTotal.Inc()

	if s.mirror != nil {
		s.mirror.MirrorReserve(ctx, order.Items)
	}

	s.publishCreated(ctx, order)

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Float64("total_price", order.TotalPrice))
	return order, nil
}

// GetOrder returns a single order. Only the owner or an admin may read it.
func (s *OrderService) GetOrder(ctx context.Context, callerID int64, callerRole string, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != callerID && callerRole != models.RoleAdmin {
		return nil, apperr.Forbiddenf("not authorized to access this order")
	}
	return order, nil
}

// GetMyOrders lists the caller's orders, newest first.
func (s *OrderService) GetMyOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetMyOrders")
	defer span.End()

	return s.store.GetOrdersByUserID(ctx, userID)
}

// GetAllOrders lists every order with the grand total across them.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, float64, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetAllOrders")
	defer span.End()

	orders, err := s.store.GetAllOrders(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := 0.0
	for _, order := range orders {
		total += order.TotalPrice
	}
	return orders, total, nil
}

// UpdateStatus moves an order to a new status under the transition rules.
// Moving to Delivered stamps the delivery time once; moving to Cancelled
// restores the reserved stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, req *UpdateStatusRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.ValidOrderStatus(req.Status) {
		return nil, apperr.Validationf("invalid order status: %s", req.Status)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusDelivered {
		return nil, apperr.Conflictf("order has already been delivered")
	}
	if !models.CanTransition(order.Status, req.Status) {
		return nil, apperr.Conflictf("cannot change order status from %s to %s", order.Status, req.Status)
	}

	from := order.Status

	if req.Status == models.OrderStatusCancelled {
		if err := s.store.CancelOrder(ctx, order); err != nil {
			return nil, err
		}
		if s.mirror != nil {
			s.mirror.MirrorRelease(ctx, order.Items)
		}
	} else {
		var deliveredAt *time.Time
		if req.Status == models.OrderStatusDelivered && order.DeliveredAt == nil {
			now := time.Now()
			deliveredAt = &now
		}
		if err := s.store.UpdateOrderStatus(ctx, orderID, req.Status, deliveredAt, req.TrackingNumber); err != nil {
			return nil, err
		}
		if deliveredAt != nil {
			order.DeliveredAt = deliveredAt
		}
		if req.TrackingNumber != nil {
			order.TrackingNumber = req.TrackingNumber
		}
	}
	order.Status = req.Status

	util.OrderStatusUpdatesTotal.WithLabelValues(req.Status).Inc()
	s.publishStatusChanged(ctx, order, from)

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", from),
		zap.String("to", req.Status))
	return order, nil
}

// CancelOrder lets the owner (or an admin) cancel an order that has not
// shipped yet, restoring every reserved unit.
func (s *OrderService) CancelOrder(ctx context.Context, callerID int64, callerRole string, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != callerID && callerRole != models.RoleAdmin {
		return nil, apperr.Forbiddenf("not authorized to access this order")
	}
	if !models.Cancellable(order.Status) {
		return nil, apperr.Conflictf("order cannot be cancelled. Current status: %s", order.Status)
	}

	if err := s.store.CancelOrder(ctx, order); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusCancelled

	if s.mirror != nil {
		s.mirror.MirrorRelease(ctx, order.Items)
	}
	util.OrdersCancelledTotal.Inc()
	s.publishCancelled(ctx, order, "cancelled by customer")

	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", callerID))
	return order, nil
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderCreated),
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Items:      eventItems(order.Items),
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish order created event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *models.Order, from string) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     order.ID,
		UserID:      order.UserID,
		FromStatus:  from,
		ToStatus:    order.Status,
		DeliveredAt: order.DeliveredAt,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish order status changed event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func (s *OrderService) publishCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Reason:    reason,
		Items:     eventItems(order.Items),
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish order cancelled event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func eventItems(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}
	return out
}
