package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartStore is the slice of the database the cart engine needs.
type CartStore interface {
	GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	SaveCart(ctx context.Context, cart *models.Cart) error
}

// ProductReader resolves live catalog entries for stock checks and line
// item snapshots.
type ProductReader interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// StockChecker reports live stock, possibly from a faster source than the
// catalog row.
type StockChecker interface {
	Available(ctx context.Context, productID int64) (int, error)
}

// CartCache holds rendered carts between reads.
type CartCache interface {
	GetCachedCart(ctx context.Context, userID int64) (*models.Cart, error)
	CacheCart(ctx context.Context, userID int64, cart *models.Cart, ttl time.Duration) error
	InvalidateCart(ctx context.Context, userID int64) error
}

// CartService maintains one active cart per user and recomputes totals on
// every mutation.
type CartService struct {
	store    CartStore
	catalog  ProductReader
	stock    StockChecker
	coupons  CouponValidator
	cache    CartCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCartService creates a cart service. stock and cache may be nil, which
// disables the fast stock path and the read cache.
func NewCartService(
	store CartStore,
	catalog ProductReader,
	stock StockChecker,
	coupons CouponValidator,
	cache CartCache,
	cacheTTL time.Duration,
) *CartService {
	return &CartService{
		store:    store,
		catalog:  catalog,
		stock:    stock,
		coupons:  coupons,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// AddCartItemRequest adds or replaces a cart line item
type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest overwrites a line item's quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// ApplyCouponRequest attaches a coupon to the cart
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// AddItem adds a product to the user's cart, creating the cart on first
// use. If the product is already a line item, its quantity is replaced by
// the requested one, not incremented.
func (s *CartService) AddItem(ctx context.Context, userID int64, req *AddCartItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	product, err := s.catalog.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	if err := s.checkStock(ctx, product, req.Quantity); err != nil {
		return nil, err
	}

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cart == nil {
		cart = &models.Cart{
			UserID: userID,
			Items:  []models.CartItem{snapshotItem(product, req.Quantity)},
		}
		cart.RecomputeTotals()
		if err := s.store.CreateCart(ctx, cart); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	} else {
		replaced := false
		for i := range cart.Items {
			if cart.Items[i].ProductID == req.ProductID {
				cart.Items[i].Quantity = req.Quantity
				replaced = true
				break
			}
		}
		if !replaced {
			cart.Items = append(cart.Items, snapshotItem(product, req.Quantity))
		}

		cart.RecomputeTotals()
		if err := s.store.SaveCart(ctx, cart); err != nil {
			return nil, fmt.Errorf("failed to save cart: %w", err)
		}
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.invalidateCache(ctx, userID)
	return cart, nil
}

// GetCart returns the user's cart. A user without a cart gets an empty
// shape, never an error.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetCachedCart(ctx, userID)
		if err != nil {
			s.logger.Warn("Cart cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}

	if s.cache != nil {
		if err := s.cache.CacheCart(ctx, userID, cart, s.cacheTTL); err != nil {
			s.logger.Warn("Cart cache write failed", zap.Error(err))
		}
	}
	return cart, nil
}

// UpdateItem overwrites the quantity of an existing line item
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, req *UpdateCartItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperr.NotFoundf("cart not found")
	}

	var item *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			item = &cart.Items[i]
			break
		}
	}
	if item == nil {
		return nil, apperr.NotFoundf("item not found in cart")
	}

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, product, req.Quantity); err != nil {
		return nil, err
	}

	item.Quantity = req.Quantity
	cart.RecomputeTotals()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	s.invalidateCache(ctx, userID)
	return cart, nil
}

// RemoveItem drops a line item. Removing an absent item is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperr.NotFoundf("cart not found")
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept

	cart.RecomputeTotals()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	s.invalidateCache(ctx, userID)
	return cart, nil
}

// Clear empties the cart in place, resetting totals and the coupon
func (s *CartService) Clear(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperr.NotFoundf("cart not found")
	}

	cart.Items = []models.CartItem{}
	cart.ClearCoupon()
	cart.RecomputeTotals()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	s.invalidateCache(ctx, userID)
	return cart, nil
}

// ApplyCoupon validates a coupon code and attaches it to the cart
func (s *CartService) ApplyCoupon(ctx context.Context, userID int64, req *ApplyCouponRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ApplyCoupon")
	defer span.End()

	coupon, err := s.coupons.Validate(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperr.NotFoundf("cart not found")
	}

	cart.SetCoupon(coupon)
	cart.RecomputeTotals()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("apply_coupon").Inc()
	s.invalidateCache(ctx, userID)
	return cart, nil
}

func (s *CartService) checkStock(ctx context.Context, product *models.Product, quantity int) error {
	available := product.Stock
	if s.stock != nil {
		if mirrored, err := s.stock.Available(ctx, product.ID); err == nil {
			available = mirrored
		}
	}
	if available < quantity {
		return apperr.InsufficientStockf("not enough stock. Available: %d", available)
	}
	return nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCart(ctx, userID); err != nil {
		s.logger.Warn("Cart cache invalidation failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}

func snapshotItem(product *models.Product, quantity int) models.CartItem {
	return models.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Image:     product.ImageURL,
		Price:     product.Price,
		Quantity:  quantity,
	}
}
