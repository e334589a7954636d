package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// orderRow is the flat column layout of the orders table. The nested
// shipping/payment shapes of models.Order are folded in and out here.
type orderRow struct {
	ID               int64      `db:"id"`
	UserID           int64      `db:"user_id"`
	ItemsPrice       float64    `db:"items_price"`
	TaxPrice         float64    `db:"tax_price"`
	ShippingPrice    float64    `db:"shipping_price"`
	TotalPrice       float64    `db:"total_price"`
	Status           string     `db:"status"`
	ShippingStreet   string     `db:"shipping_street"`
	ShippingCity     string     `db:"shipping_city"`
	ShippingState    string     `db:"shipping_state"`
	ShippingCountry  string     `db:"shipping_country"`
	ShippingZip      string     `db:"shipping_zip"`
	ShippingPhone    string     `db:"shipping_phone"`
	PaymentType      string     `db:"payment_type"`
	PaymentGatewayID *string    `db:"payment_gateway_id"`
	PaymentStatus    *string    `db:"payment_status"`
	PaidAt           *time.Time `db:"paid_at"`
	DeliveredAt      *time.Time `db:"delivered_at"`
	TrackingNumber   *string    `db:"tracking_number"`
	OrderNotes       *string    `db:"order_notes"`
	RefundStatus     string     `db:"refund_status"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r *orderRow) toModel() *models.Order {
	return &models.Order{
		ID:     r.ID,
		UserID: r.UserID,
		ShippingAddress: models.ShippingAddress{
			Street:  r.ShippingStreet,
			City:    r.ShippingCity,
			State:   r.ShippingState,
			Country: r.ShippingCountry,
			ZipCode: r.ShippingZip,
			Phone:   r.ShippingPhone,
		},
		PaymentInfo: models.PaymentInfo{
			Type:      r.PaymentType,
			GatewayID: r.PaymentGatewayID,
			Status:    r.PaymentStatus,
			PaidAt:    r.PaidAt,
		},
		ItemsPrice:     r.ItemsPrice,
		TaxPrice:       r.TaxPrice,
		ShippingPrice:  r.ShippingPrice,
		TotalPrice:     r.TotalPrice,
		Status:         r.Status,
		DeliveredAt:    r.DeliveredAt,
		TrackingNumber: r.TrackingNumber,
		OrderNotes:     r.OrderNotes,
		RefundStatus:   r.RefundStatus,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// CreateOrder reserves stock and inserts the order and its items in one
// transaction. Each reservation is a conditional decrement; if any item
// does not have enough live stock the whole transaction rolls back, so
// stock can never go negative and no partial order survives.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range order.Items {
		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to reserve stock: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.InsufficientStockf("not enough stock for product: %s", item.Name)
		}
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO orders (
			user_id, items_price, tax_price, shipping_price, total_price, status,
			shipping_street, shipping_city, shipping_state, shipping_country, shipping_zip, shipping_phone,
			payment_type, payment_gateway_id, payment_status, paid_at,
			tracking_number, order_notes, refund_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice, order.Status,
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State,
		order.ShippingAddress.Country, order.ShippingAddress.ZipCode, order.ShippingAddress.Phone,
		order.PaymentInfo.Type, order.PaymentInfo.GatewayID, order.PaymentInfo.Status, order.PaymentInfo.PaidAt,
		order.TrackingNumber, order.OrderNotes, order.RefundStatus).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, image, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Name, item.Image, item.Price, item.Quantity).
			Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}

	order := row.toModel()

	items := []models.OrderItem{}
	err = s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// GetOrdersByUserID retrieves a user's orders, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, rows)
}

// GetAllOrders retrieves every order, newest first
func (s *Store) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM orders ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, rows)
}

func (s *Store) attachItems(ctx context.Context, rows []orderRow) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]models.OrderItem, len(rows))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	for i := range rows {
		order := rows[i].toModel()
		order.Items = byOrder[order.ID]
		if order.Items == nil {
			order.Items = []models.OrderItem{}
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// UpdateOrderStatus sets a new status. DeliveredAt and the tracking number
// are only written when provided.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string, deliveredAt *time.Time, trackingNumber *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    delivered_at = COALESCE($2, delivered_at),
		    tracking_number = COALESCE($3, tracking_number),
		    updated_at = NOW()
		WHERE id = $4`,
		status, deliveredAt, trackingNumber, orderID)
	return err
}

// CancelOrder marks the order cancelled and restores stock for every item
// in one transaction, the inverse of the decrement done at creation. The
// status write is conditional on the order still being open, so a cancel
// racing another cancel (or an admin move to Cancelled) cannot restore
// stock twice.
func (s *Store) CancelOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status IN ($3, $4, $5)",
		models.OrderStatusCancelled, order.ID,
		models.OrderStatusProcessing, models.OrderStatusConfirmed, models.OrderStatusShipped)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.Conflictf("order is no longer open")
	}

	for _, item := range order.Items {
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	return tx.Commit()
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
