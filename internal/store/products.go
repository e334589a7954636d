package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// ProductFilter narrows and orders a product listing. Zero values mean
// "no constraint".
type ProductFilter struct {
	CategoryID int64
	MinPrice   *float64
	MaxPrice   *float64
	Search     string
	Sort       string
	Page       int
	Limit      int
}

var productSortColumns = map[string]string{
	"price":       "price ASC",
	"-price":      "price DESC",
	"name":        "name ASC",
	"-name":       "name DESC",
	"ratings":     "ratings ASC",
	"-ratings":    "ratings DESC",
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, category_id, seller_id, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, ratings, num_of_reviews, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		product.Name, product.Description, product.Price, product.Stock,
		product.CategoryID, product.SellerID, product.ImageURL, product.IsActive).
		Scan(&product.ID, &product.Ratings, &product.NumOfReviews, &product.CreatedAt, &product.UpdatedAt)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetAllProducts retrieves every product
func (s *Store) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// ListProducts returns one page of products matching the filter plus the
// total match count for pagination.
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int, error) {
	where := []string{"is_active = TRUE"}
	args := []interface{}{}

	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		where = append(where, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM products WHERE " + whereClause
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	orderBy, ok := productSortColumns[filter.Sort]
	if !ok {
		orderBy = "created_at DESC"
	}

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, (filter.Page-1)*filter.Limit)
	offsetPos := len(args)

	listQuery := fmt.Sprintf(
		"SELECT * FROM products WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		whereClause, orderBy, limitPos, offsetPos)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, listQuery, args...); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// UpdateProduct persists an edited product
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4,
		    category_id = $5, image_url = $6, is_active = $7, updated_at = NOW()
		WHERE id = $8`,
		product.Name, product.Description, product.Price, product.Stock,
		product.CategoryID, product.ImageURL, product.IsActive, product.ID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFoundf("product not found: %d", product.ID)
	}
	return nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFoundf("product not found: %d", id)
	}
	return nil
}

// CreateReview inserts a review and refreshes the product's rating mean and
// review count in the same transaction. A second review by the same user is
// rejected.
func (s *Store) CreateReview(ctx context.Context, review *models.Review) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO product_reviews (product_id, user_id, name, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, user_id) DO NOTHING
		RETURNING id, created_at`,
		review.ProductID, review.UserID, review.Name, review.Rating, review.Comment).
		Scan(&review.ID, &review.CreatedAt)
	if err == sql.ErrNoRows {
		return apperr.Validationf("product already reviewed")
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET ratings = (SELECT AVG(rating) FROM product_reviews WHERE product_id = $1),
		    num_of_reviews = (SELECT COUNT(*) FROM product_reviews WHERE product_id = $1),
		    updated_at = NOW()
		WHERE id = $1`,
		review.ProductID)
	if err != nil {
		return fmt.Errorf("failed to refresh review aggregates: %w", err)
	}

	return tx.Commit()
}

// GetReviewsByProductID retrieves all reviews for a product, oldest first
func (s *Store) GetReviewsByProductID(ctx context.Context, productID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM product_reviews WHERE product_id = $1 ORDER BY created_at", productID)
	return reviews, err
}
