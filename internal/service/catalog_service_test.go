package service

import (
	"context"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T) (*CatalogService, *fakeCatalog, *fakeUserStore) {
	t.Helper()
	catalog := newFakeCatalog()
	users := newFakeUserStore()
	return NewCatalogService(catalog, users), catalog, users
}

func TestCreateProductSetsOwner(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)

	product, err := svc.CreateProduct(context.Background(), 5, &CreateProductRequest{
		Name:       "Headphones",
		Price:      79.99,
		Stock:      20,
		CategoryID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), product.SellerID)
	assert.True(t, product.IsActive)
}

func TestUpdateProductOwnership(t *testing.T) {
	svc, catalog, _ := newCatalogFixture(t)
	product := catalog.add(models.Product{Name: "Speaker", Price: 50, Stock: 5, SellerID: 5})

	newPrice := 60.0
	_, err := svc.UpdateProduct(context.Background(), 6, models.RoleSeller, product.ID, &UpdateProductRequest{Price: &newPrice})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	updated, err := svc.UpdateProduct(context.Background(), 5, models.RoleSeller, product.ID, &UpdateProductRequest{Price: &newPrice})
	require.NoError(t, err)
	assert.InDelta(t, 60, updated.Price, 0.001)

	// Admins may edit any product.
	name := "Loudspeaker"
	updated, err = svc.UpdateProduct(context.Background(), 99, models.RoleAdmin, product.ID, &UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Loudspeaker", updated.Name)
}

func TestUpdateProductRejectsBadValues(t *testing.T) {
	svc, catalog, _ := newCatalogFixture(t)
	product := catalog.add(models.Product{Name: "Speaker", Price: 50, Stock: 5, SellerID: 5})

	zero := 0.0
	_, err := svc.UpdateProduct(context.Background(), 5, models.RoleSeller, product.ID, &UpdateProductRequest{Price: &zero})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	negative := -1
	_, err = svc.UpdateProduct(context.Background(), 5, models.RoleSeller, product.ID, &UpdateProductRequest{Stock: &negative})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteProductOwnership(t *testing.T) {
	svc, catalog, _ := newCatalogFixture(t)
	product := catalog.add(models.Product{Name: "Speaker", Price: 50, SellerID: 5})

	err := svc.DeleteProduct(context.Background(), 6, models.RoleSeller, product.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, svc.DeleteProduct(context.Background(), 5, models.RoleSeller, product.ID))

	_, err = svc.GetProduct(context.Background(), product.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddReviewRefreshesAggregates(t *testing.T) {
	svc, catalog, users := newCatalogFixture(t)
	product := catalog.add(models.Product{Name: "Speaker", Price: 50})
	require.NoError(t, users.CreateUser(context.Background(), &models.User{Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, users.CreateUser(context.Background(), &models.User{Name: "Ben", Email: "ben@example.com"}))

	review, err := svc.AddReview(context.Background(), 1, product.ID, &CreateReviewRequest{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", review.Name)

	_, err = svc.AddReview(context.Background(), 2, product.ID, &CreateReviewRequest{Rating: 3})
	require.NoError(t, err)

	refreshed, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.NumOfReviews)
	assert.InDelta(t, 4.0, refreshed.Ratings, 0.001)

	// One review per user per product.
	_, err = svc.AddReview(context.Background(), 1, product.ID, &CreateReviewRequest{Rating: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListReviewsUnknownProduct(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)

	_, err := svc.ListReviews(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
