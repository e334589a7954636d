package store

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/lib/pq"
)

// CreateCategory inserts a new category
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO categories (name, description, slug, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		category.Name, category.Description, category.Slug, category.ParentID).
		Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Validationf("category name already exists: %s", category.Name)
	}
	return err
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("category not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategories retrieves all categories ordered by name
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY name")
	return categories, err
}

// GetChildCategories retrieves the direct children of a category
func (s *Store) GetChildCategories(ctx context.Context, parentID int64) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories,
		"SELECT * FROM categories WHERE parent_id = $1 ORDER BY name", parentID)
	return categories, err
}

// HasChildCategories reports whether any category points at the given one
// as its parent
func (s *Store) HasChildCategories(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE parent_id = $1)", id)
	return exists, err
}

// UpdateCategory persists an edited category
func (s *Store) UpdateCategory(ctx context.Context, category *models.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $1, description = $2, slug = $3, parent_id = $4, updated_at = NOW()
		WHERE id = $5`,
		category.Name, category.Description, category.Slug, category.ParentID, category.ID)
	if isUniqueViolation(err) {
		return apperr.Validationf("category name already exists: %s", category.Name)
	}
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFoundf("category not found: %d", category.ID)
	}
	return nil
}

// DeleteCategory removes a category
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFoundf("category not found: %d", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
