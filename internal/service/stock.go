package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// StockStore is the slice of the database the stock manager reads.
type StockStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetAllProducts(ctx context.Context) ([]models.Product, error)
}

// StockManager keeps a Redis mirror of catalog stock. The database is the
// source of truth; the mirror gives cart stock checks a fast path and is
// adjusted best-effort after every order-path mutation.
type StockManager struct {
	store  StockStore
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewStockManager creates a stock manager
func NewStockManager(store StockStore, redis *redisclient.Client) *StockManager {
	return &StockManager{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// Available reports the current stock for a product, preferring the mirror.
func (sm *StockManager) Available(ctx context.Context, productID int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "StockManager.Available")
	defer span.End()

	if sm.redis != nil {
		stock, err := sm.redis.GetStock(ctx, productID)
		if err == nil {
			return stock, nil
		}
		if !errors.Is(err, redisclient.ErrMirrorCold) {
			sm.logger.Warn("Stock mirror read failed, falling back to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	product, err := sm.store.GetProductByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// MirrorReserve decrements the mirror for every ordered item. Called after
// the database reservation committed; failures only degrade the fast path.
func (sm *StockManager) MirrorReserve(ctx context.Context, items []models.OrderItem) {
	if sm.redis == nil {
		return
	}
	for _, item := range items {
		if _, err := sm.redis.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil &&
			!errors.Is(err, redisclient.ErrMirrorCold) {
			sm.logger.Warn("Failed to mirror stock reservation",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

// MirrorRelease increments the mirror for every restored item.
func (sm *StockManager) MirrorRelease(ctx context.Context, items []models.OrderItem) {
	if sm.redis == nil {
		return
	}
	for _, item := range items {
		if err := sm.redis.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			sm.logger.Warn("Failed to mirror stock release",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

// SyncToRedis repopulates the mirror from the database. Run at boot and
// safe to rerun at any time.
func (sm *StockManager) SyncToRedis(ctx context.Context) error {
	if sm.redis == nil {
		return nil
	}

	start := time.Now()
	products, err := sm.store.GetAllProducts(ctx)
	if err != nil {
		return err
	}

	for _, product := range products {
		if err := sm.redis.SetStock(ctx, product.ID, product.Stock); err != nil {
			sm.logger.Error("Failed to mirror product stock",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		}
	}

	sm.logger.Info("Stock mirror synced",
		zap.Int("count", len(products)),
		zap.Duration("took", time.Since(start)))
	return nil
}
