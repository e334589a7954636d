package service

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogStore is the slice of the database the catalog needs.
type CatalogStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewsByProductID(ctx context.Context, productID int64) ([]models.Review, error)
}

// UserReader resolves the display name stamped onto reviews.
type UserReader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// CatalogService manages products and their reviews. Writes to a product
// are restricted to the owning seller and admins.
type CatalogService struct {
	store  CatalogStore
	users  UserReader
	logger *zap.Logger
}

func NewCatalogService(store CatalogStore, users UserReader) *CatalogService {
	return &CatalogService{
		store:  store,
		users:  users,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest creates a catalog entry owned by the caller
type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       int     `json:"stock" binding:"min=0"`
	CategoryID  int64   `json:"category_id" binding:"required"`
	ImageURL    string  `json:"image_url"`
}

// UpdateProductRequest patches a product; nil fields are left unchanged
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	CategoryID  *int64   `json:"category_id"`
	ImageURL    *string  `json:"image_url"`
	IsActive    *bool    `json:"is_active"`
}

// CreateReviewRequest adds a review. One review per user per product.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// CreateProduct adds a catalog entry owned by the calling seller.
func (s *CatalogService) CreateProduct(ctx context.Context, sellerID int64, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		SellerID:    sellerID,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Int64("seller_id", sellerID))
	return product, nil
}

// ListProducts returns one page of the catalog under the given filter,
// plus the total match count for pagination.
func (s *CatalogService) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	return s.store.ListProducts(ctx, filter)
}

// GetProduct returns a single catalog entry.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	return s.store.GetProductByID(ctx, id)
}

// UpdateProduct patches a product. Only the owning seller or an admin may
// change it.
func (s *CatalogService) UpdateProduct(ctx context.Context, callerID int64, callerRole string, productID int64, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != callerID && callerRole != models.RoleAdmin {
		return nil, apperr.Forbiddenf("not authorized to modify this product")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, apperr.Validationf("price must be greater than zero")
		}
		product.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, apperr.Validationf("stock cannot be negative")
		}
		product.Stock = *req.Stock
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product. Only the owning seller or an admin may
// delete it.
func (s *CatalogService) DeleteProduct(ctx context.Context, callerID int64, callerRole string, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != callerID && callerRole != models.RoleAdmin {
		return apperr.Forbiddenf("not authorized to modify this product")
	}
	return s.store.DeleteProduct(ctx, productID)
}

// AddReview records a review under the caller's display name and refreshes
// the product's rating aggregates.
func (s *CatalogService) AddReview(ctx context.Context, userID, productID int64, req *CreateReviewRequest) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddReview")
	defer span.End()

	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		ProductID: productID,
		UserID:    userID,
		Name:      user.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	util.ReviewsCreatedTotal.Inc()
	return review, nil
}

// ListReviews returns every review for an existing product.
func (s *CatalogService) ListReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListReviews")
	defer span.End()

	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.GetReviewsByProductID(ctx, productID)
}
