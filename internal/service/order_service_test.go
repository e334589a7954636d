package service

import (
	"context"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderFixture(t *testing.T) (*OrderService, *fakeCatalog, *fakeOrderStore, *fakePublisher) {
	t.Helper()
	catalog := newFakeCatalog()
	orders := newFakeOrderStore(catalog)
	publisher := &fakePublisher{}
	svc := NewOrderService(orders, catalog, publisher, nil)
	return svc, catalog, orders, publisher
}

func validCreateRequest(items ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{
		Items: items,
		ShippingAddress: ShippingAddressRequest{
			Street:  "1 Main St",
			City:    "Springfield",
			State:   "IL",
			Country: "US",
			ZipCode: "62701",
			Phone:   "555-0100",
		},
		PaymentInfo:   PaymentInfoRequest{Type: models.PaymentTypeCash},
		ItemsPrice:    100,
		TaxPrice:      10,
		ShippingPrice: 5,
		TotalPrice:    115,
	}
}

func TestCreateOrderReservesStock(t *testing.T) {
	svc, catalog, _, publisher := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "Monitor", Price: 200, Stock: 5, ImageURL: "m.png"})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 2},
	))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Equal(t, models.RefundStatusNone, order.RefundStatus)
	require.NotNil(t, order.TrackingNumber)
	assert.Regexp(t, `^TRK-`, *order.TrackingNumber)

	// Line items are snapshots of the live catalog, not caller input.
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Monitor", order.Items[0].Name)
	assert.Equal(t, "m.png", order.Items[0].Image)
	assert.InDelta(t, 200, order.Items[0].Price, 0.001)

	assert.Equal(t, 3, catalog.products[product.ID].Stock)
	require.Len(t, publisher.created, 1)
	assert.Equal(t, order.ID, publisher.created[0].OrderID)
}

func TestCreateOrderInsufficientStockLeavesStockIntact(t *testing.T) {
	svc, catalog, _, publisher := newOrderFixture(t)
	ok := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})
	scarce := catalog.add(models.Product{Name: "B", Price: 10, Stock: 1})

	_, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: ok.ID, Quantity: 2},
		OrderItemRequest{ProductID: scarce.ID, Quantity: 3},
	))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	// The whole order fails; no product lost any stock.
	assert.Equal(t, 5, catalog.products[ok.ID].Stock)
	assert.Equal(t, 1, catalog.products[scarce.ID].Stock)
	assert.Empty(t, publisher.created)
}

func TestCreateOrderEmptyItems(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t)

	_, err := svc.CreateOrder(context.Background(), 1, validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t)

	_, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: 42, Quantity: 1},
	))
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	svc, catalog, _, publisher := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.products[product.ID].Stock)

	cancelled, err := svc.CancelOrder(context.Background(), 1, models.RoleUser, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 5, catalog.products[product.ID].Stock)
	require.Len(t, publisher.cancelled, 1)
	assert.Equal(t, order.ID, publisher.cancelled[0].OrderID)
}

func TestCancelOrderOwnershipAndWindow(t *testing.T) {
	svc, catalog, orders, _ := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 1},
	))
	require.NoError(t, err)

	// Another user cannot cancel it; an admin can.
	_, err = svc.CancelOrder(context.Background(), 2, models.RoleUser, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// Shipped orders are past the cancellation window.
	orders.orders[order.ID].Status = models.OrderStatusShipped
	_, err = svc.CancelOrder(context.Background(), 1, models.RoleUser, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCancelOrderTwiceRestoresStockOnce(t *testing.T) {
	svc, catalog, orders, _ := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 2},
	))
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), 1, models.RoleUser, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, catalog.products[product.ID].Stock)

	// A racing cancel that read the order while it was still open hits the
	// store's conditional write and conflicts instead of restoring again.
	err = orders.CancelOrder(context.Background(), order)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 5, catalog.products[product.ID].Stock)
}

func TestUpdateStatusStampsDeliveredOnce(t *testing.T) {
	svc, catalog, _, publisher := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 1},
	))
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, &UpdateStatusRequest{Status: models.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveredAt)
	require.Len(t, publisher.statusChanged, 1)
	assert.Equal(t, models.OrderStatusProcessing, publisher.statusChanged[0].FromStatus)
	assert.Equal(t, models.OrderStatusDelivered, publisher.statusChanged[0].ToStatus)

	// Delivered is terminal.
	_, err = svc.UpdateStatus(context.Background(), order.ID, &UpdateStatusRequest{Status: models.OrderStatusShipped})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.EqualError(t, err, "order has already been delivered")
}

func TestUpdateStatusRejectsInvalidAndSameStatus(t *testing.T) {
	svc, catalog, _, _ := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 1},
	))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, &UpdateStatusRequest{Status: "Teleported"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateStatus(context.Background(), order.ID, &UpdateStatusRequest{Status: models.OrderStatusProcessing})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUpdateStatusToCancelledRestoresStock(t *testing.T) {
	svc, catalog, _, _ := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.products[product.ID].Stock)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, &UpdateStatusRequest{Status: models.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Equal(t, 5, catalog.products[product.ID].Stock)
}

func TestGetOrderAccess(t *testing.T) {
	svc, catalog, _, _ := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 5})

	order, err := svc.CreateOrder(context.Background(), 1, validCreateRequest(
		OrderItemRequest{ProductID: product.ID, Quantity: 1},
	))
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), 1, models.RoleUser, order.ID)
	assert.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), 2, models.RoleUser, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.GetOrder(context.Background(), 2, models.RoleAdmin, order.ID)
	assert.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), 1, models.RoleUser, 999)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetAllOrdersSumsTotals(t *testing.T) {
	svc, catalog, _, _ := newOrderFixture(t)
	product := catalog.add(models.Product{Name: "A", Price: 10, Stock: 50})

	for i := 0; i < 3; i++ {
		req := validCreateRequest(OrderItemRequest{ProductID: product.ID, Quantity: 1})
		req.TotalPrice = 20
		_, err := svc.CreateOrder(context.Background(), int64(i+1), req)
		require.NoError(t, err)
	}

	orders, total, err := svc.GetAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	assert.InDelta(t, 60, total, 0.001)
}
