package service

import (
	"context"
	"sort"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
)

// fakeCatalog is an in-memory product table shared between the cart, order
// and catalog fakes so stock changes are visible everywhere.
type fakeCatalog struct {
	nextID   int64
	products map[int64]*models.Product
	reviews  map[int64][]models.Review
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		nextID:   1,
		products: make(map[int64]*models.Product),
		reviews:  make(map[int64][]models.Review),
	}
}

func (f *fakeCatalog) add(p models.Product) *models.Product {
	p.ID = f.nextID
	f.nextID++
	f.products[p.ID] = &p
	return &p
}

func (f *fakeCatalog) CreateProduct(_ context.Context, product *models.Product) error {
	product.ID = f.nextID
	f.nextID++
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.NotFoundf("product not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter store.ProductFilter) ([]models.Product, int, error) {
	var out []models.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, product *models.Product) error {
	if _, ok := f.products[product.ID]; !ok {
		return apperr.NotFoundf("product not found")
	}
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := f.products[id]; !ok {
		return apperr.NotFoundf("product not found")
	}
	delete(f.products, id)
	return nil
}

func (f *fakeCatalog) CreateReview(_ context.Context, review *models.Review) error {
	for _, r := range f.reviews[review.ProductID] {
		if r.UserID == review.UserID {
			return apperr.Validationf("product already reviewed")
		}
	}
	review.ID = int64(len(f.reviews[review.ProductID]) + 1)
	f.reviews[review.ProductID] = append(f.reviews[review.ProductID], *review)

	p := f.products[review.ProductID]
	sum := 0
	for _, r := range f.reviews[review.ProductID] {
		sum += r.Rating
	}
	p.NumOfReviews = len(f.reviews[review.ProductID])
	p.Ratings = float64(sum) / float64(p.NumOfReviews)
	return nil
}

func (f *fakeCatalog) GetReviewsByProductID(_ context.Context, productID int64) ([]models.Review, error) {
	return f.reviews[productID], nil
}

// fakeCartStore keeps one cart per user.
type fakeCartStore struct {
	nextID int64
	carts  map[int64]*models.Cart
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{nextID: 1, carts: make(map[int64]*models.Cart)}
}

func (f *fakeCartStore) GetCartByUserID(_ context.Context, userID int64) (*models.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := *cart
	cp.Items = append([]models.CartItem(nil), cart.Items...)
	cp.SyncCouponView()
	return &cp, nil
}

func (f *fakeCartStore) CreateCart(_ context.Context, cart *models.Cart) error {
	cart.ID = f.nextID
	f.nextID++
	cp := *cart
	cp.Items = append([]models.CartItem(nil), cart.Items...)
	f.carts[cart.UserID] = &cp
	return nil
}

func (f *fakeCartStore) SaveCart(_ context.Context, cart *models.Cart) error {
	cp := *cart
	cp.Items = append([]models.CartItem(nil), cart.Items...)
	f.carts[cart.UserID] = &cp
	return nil
}

// fakeOrderStore mimics the transactional stock reservation: creation
// decrements the shared catalog's stock and fails whole if any line item
// cannot be covered.
type fakeOrderStore struct {
	nextID  int64
	catalog *fakeCatalog
	orders  map[int64]*models.Order
}

func newFakeOrderStore(catalog *fakeCatalog) *fakeOrderStore {
	return &fakeOrderStore{nextID: 1, catalog: catalog, orders: make(map[int64]*models.Order)}
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	for _, item := range order.Items {
		p, ok := f.catalog.products[item.ProductID]
		if !ok || p.Stock < item.Quantity {
			return apperr.InsufficientStockf("not enough stock for product: %s", item.Name)
		}
	}
	for _, item := range order.Items {
		f.catalog.products[item.ProductID].Stock -= item.Quantity
	}
	order.ID = f.nextID
	f.nextID++
	order.CreatedAt = time.Now()
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order not found")
	}
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	return &cp, nil
}

func (f *fakeOrderStore) GetOrdersByUserID(_ context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOrderStore) GetAllOrders(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		out = append(out, *order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(_ context.Context, orderID int64, status string, deliveredAt *time.Time, trackingNumber *string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return apperr.NotFoundf("order not found")
	}
	order.Status = status
	if deliveredAt != nil {
		order.DeliveredAt = deliveredAt
	}
	if trackingNumber != nil {
		order.TrackingNumber = trackingNumber
	}
	return nil
}

func (f *fakeOrderStore) CancelOrder(_ context.Context, order *models.Order) error {
	stored, ok := f.orders[order.ID]
	if !ok {
		return apperr.NotFoundf("order not found")
	}
	switch stored.Status {
	case models.OrderStatusProcessing, models.OrderStatusConfirmed, models.OrderStatusShipped:
	default:
		return apperr.Conflictf("order is no longer open")
	}
	stored.Status = models.OrderStatusCancelled
	for _, item := range stored.Items {
		if p, ok := f.catalog.products[item.ProductID]; ok {
			p.Stock += item.Quantity
		}
	}
	return nil
}

// fakePublisher records every published event in order.
type fakePublisher struct {
	created       []*models.OrderCreatedEvent
	statusChanged []*models.OrderStatusChangedEvent
	cancelled     []*models.OrderCancelledEvent
}

func (f *fakePublisher) PublishOrderCreated(_ context.Context, event *models.OrderCreatedEvent) error {
	f.created = append(f.created, event)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(_ context.Context, event *models.OrderStatusChangedEvent) error {
	f.statusChanged = append(f.statusChanged, event)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(_ context.Context, event *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, event)
	return nil
}

// fakeUserStore keeps accounts keyed by id and email.
type fakeUserStore struct {
	nextID  int64
	byID    map[int64]*models.User
	byEmail map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		nextID:  1,
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (f *fakeUserStore) CreateUser(_ context.Context, user *models.User) error {
	if _, ok := f.byEmail[user.Email]; ok {
		return apperr.Validationf("email already registered")
	}
	user.ID = f.nextID
	f.nextID++
	cp := *user
	f.byID[user.ID] = &cp
	f.byEmail[user.Email] = &cp
	return nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	cp := *user
	return &cp, nil
}

func (f *fakeUserStore) UpdateUser(_ context.Context, user *models.User) error {
	stored, ok := f.byID[user.ID]
	if !ok {
		return apperr.NotFoundf("user not found")
	}
	if other, exists := f.byEmail[user.Email]; exists && other.ID != user.ID {
		return apperr.Validationf("email already registered")
	}
	delete(f.byEmail, stored.Email)
	stored.Name = user.Name
	stored.Email = user.Email
	f.byEmail[stored.Email] = stored
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	stored, ok := f.byID[id]
	if !ok {
		return apperr.NotFoundf("user not found")
	}
	stored.PasswordHash = passwordHash
	return nil
}

// fakeCategoryStore keeps the category table in memory.
type fakeCategoryStore struct {
	nextID     int64
	categories map[int64]*models.Category
}

func newFakeCategoryStore() *fakeCategoryStore {
	return &fakeCategoryStore{nextID: 1, categories: make(map[int64]*models.Category)}
}

func (f *fakeCategoryStore) CreateCategory(_ context.Context, category *models.Category) error {
	category.ID = f.nextID
	f.nextID++
	cp := *category
	f.categories[category.ID] = &cp
	return nil
}

func (f *fakeCategoryStore) GetCategoryByID(_ context.Context, id int64) (*models.Category, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, apperr.NotFoundf("category not found")
	}
	cp := *category
	return &cp, nil
}

func (f *fakeCategoryStore) GetCategories(_ context.Context) ([]models.Category, error) {
	var out []models.Category
	for _, c := range f.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCategoryStore) GetChildCategories(_ context.Context, parentID int64) ([]models.Category, error) {
	var out []models.Category
	for _, c := range f.categories {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCategoryStore) HasChildCategories(_ context.Context, id int64) (bool, error) {
	for _, c := range f.categories {
		if c.ParentID != nil && *c.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCategoryStore) UpdateCategory(_ context.Context, category *models.Category) error {
	if _, ok := f.categories[category.ID]; !ok {
		return apperr.NotFoundf("category not found")
	}
	cp := *category
	f.categories[category.ID] = &cp
	return nil
}

func (f *fakeCategoryStore) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := f.categories[id]; !ok {
		return apperr.NotFoundf("category not found")
	}
	delete(f.categories, id)
	return nil
}
