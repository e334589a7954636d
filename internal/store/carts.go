package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

type execQuerier interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

// GetCartByUserID retrieves a user's cart with its line items, or (nil, nil)
// if the user has no cart yet.
func (s *Store) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items := []models.CartItem{}
	err = s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cart.ID)
	if err != nil {
		return nil, err
	}

	cart.Items = items
	cart.SyncCouponView()
	return &cart, nil
}

// CreateCart inserts a new cart with its items
func (s *Store) CreateCart(ctx context.Context, cart *models.Cart) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO carts (user_id, total_items, total_price, coupon_code, coupon_discount, coupon_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		cart.UserID, cart.TotalItems, cart.TotalPrice,
		cart.CouponCode, cart.CouponDiscount, cart.CouponType).
		Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}

	if err := insertCartItems(ctx, tx, cart); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveCart persists the cart's totals, coupon and full item set. Items are
// replaced wholesale, mirroring the in-memory mutation the service did.
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE carts
		SET total_items = $1, total_price = $2,
		    coupon_code = $3, coupon_discount = $4, coupon_type = $5,
		    updated_at = NOW()
		WHERE id = $6`,
		cart.TotalItems, cart.TotalPrice,
		cart.CouponCode, cart.CouponDiscount, cart.CouponType, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cart.ID)
	if err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	if err := insertCartItems(ctx, tx, cart); err != nil {
		return err
	}

	return tx.Commit()
}

func insertCartItems(ctx context.Context, tx execQuerier, cart *models.Cart) error {
	for i := range cart.Items {
		item := &cart.Items[i]
		item.CartID = cart.ID
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, name, image, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.CartID, item.ProductID, item.Name, item.Image, item.Price, item.Quantity).
			Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}
	return nil
}
