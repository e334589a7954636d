package service

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CategoryStore is the slice of the database the category tree needs.
type CategoryStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetChildCategories(ctx context.Context, parentID int64) ([]models.Category, error)
	HasChildCategories(ctx context.Context, id int64) (bool, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// CategoryService maintains the category tree. Slugs are always derived
// from the name, never supplied by the caller.
type CategoryService struct {
	store  CategoryStore
	logger *zap.Logger
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store, logger: util.GetLogger()}
}

// CreateCategoryRequest creates a category, optionally under a parent
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
}

// UpdateCategoryRequest patches a category; nil fields stay unchanged
type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *int64  `json:"parent_id"`
}

// Create adds a category. A named parent must exist.
func (s *CategoryService) Create(ctx context.Context, req *CreateCategoryRequest) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Create")
	defer span.End()

	if req.ParentID != nil {
		if _, err := s.store.GetCategoryByID(ctx, *req.ParentID); err != nil {
			return nil, err
		}
	}

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	}
	category.DeriveSlug()

	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created",
		zap.Int64("category_id", category.ID),
		zap.String("slug", category.Slug))
	return category, nil
}

// List returns every category with parent and subcategory references
// resolved in memory from a single load.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.List")
	defer span.End()

	categories, err := s.store.GetCategories(ctx)
	if err != nil {
		return nil, err
	}

	refs := make(map[int64]models.CategoryRef, len(categories))
	for _, c := range categories {
		refs[c.ID] = models.CategoryRef{ID: c.ID, Name: c.Name}
	}
	children := make(map[int64][]models.CategoryRef)
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], refs[c.ID])
		}
	}

	for i := range categories {
		if categories[i].ParentID != nil {
			if ref, ok := refs[*categories[i].ParentID]; ok {
				parent := ref
				categories[i].Parent = &parent
			}
		}
		categories[i].Subcategories = children[categories[i].ID]
	}
	return categories, nil
}

// Get returns one category with its parent and direct children resolved.
func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Get")
	defer span.End()

	category, err := s.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if category.ParentID != nil {
		parent, err := s.store.GetCategoryByID(ctx, *category.ParentID)
		if err == nil {
			category.Parent = &models.CategoryRef{ID: parent.ID, Name: parent.Name}
		}
	}

	kids, err := s.store.GetChildCategories(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, kid := range kids {
		category.Subcategories = append(category.Subcategories, models.CategoryRef{ID: kid.ID, Name: kid.Name})
	}
	return category, nil
}

// Update patches a category, re-deriving the slug on rename. A category
// may not become its own parent.
func (s *CategoryService) Update(ctx context.Context, id int64, req *UpdateCategoryRequest) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Update")
	defer span.End()

	category, err := s.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
		category.DeriveSlug()
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, apperr.Validationf("category cannot be its own parent")
		}
		if _, err := s.store.GetCategoryByID(ctx, *req.ParentID); err != nil {
			return nil, err
		}
		category.ParentID = req.ParentID
	}

	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a leaf category. Categories with subcategories are
// refused.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CategoryService.Delete")
	defer span.End()

	if _, err := s.store.GetCategoryByID(ctx, id); err != nil {
		return err
	}

	hasChildren, err := s.store.HasChildCategories(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return apperr.Conflictf("cannot delete category with subcategories. Delete subcategories first")
	}
	return s.store.DeleteCategory(ctx, id)
}

// Tree returns the full category hierarchy from the roots down.
func (s *CategoryService) Tree(ctx context.Context) ([]models.CategoryNode, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Tree")
	defer span.End()

	categories, err := s.store.GetCategories(ctx)
	if err != nil {
		return nil, err
	}

	children := make(map[int64][]models.Category)
	var roots []models.Category
	for _, c := range categories {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	var build func(c models.Category) models.CategoryNode
	build = func(c models.Category) models.CategoryNode {
		node := models.CategoryNode{Category: c, Children: []models.CategoryNode{}}
		for _, kid := range children[c.ID] {
			node.Children = append(node.Children, build(kid))
		}
		return node
	}

	tree := make([]models.CategoryNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, build(root))
	}
	return tree, nil
}
