package models

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// User roles
const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User represents an account that can authenticate against the API
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Product represents a catalog entry owned by a single seller
type Product struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Price        float64   `db:"price" json:"price"`
	Stock        int       `db:"stock" json:"stock"`
	CategoryID   int64     `db:"category_id" json:"category_id"`
	SellerID     int64     `db:"seller_id" json:"seller_id"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	Ratings      float64   `db:"ratings" json:"ratings"`
	NumOfReviews int       `db:"num_of_reviews" json:"num_of_reviews"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Review is a single product review. The product's ratings mean and review
// count are maintained alongside every insertion.
type Review struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Category forms a tree via the parent reference. Parent and Subcategories
// are resolved views, not stored columns.
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Slug        string    `db:"slug" json:"slug"`
	ParentID    *int64    `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Parent        *CategoryRef  `db:"-" json:"parent,omitempty"`
	Subcategories []CategoryRef `db:"-" json:"subcategories,omitempty"`
}

// CategoryRef is the shallow shape used when a category is referenced from
// another one.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryNode is a category with recursively resolved children, as served
// by the tree endpoint.
type CategoryNode struct {
	Category
	Children []CategoryNode `json:"children"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]`)

// Slugify lowercases a name and replaces every non-alphanumeric character
// with a dash.
func Slugify(name string) string {
	return slugPattern.ReplaceAllString(strings.ToLower(name), "-")
}

// DeriveSlug refreshes the slug from the current name.
func (c *Category) DeriveSlug() {
	c.Slug = Slugify(c.Name)
}

// Coupon discount types
const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

// Coupon is a discount descriptor applied to a cart's total.
type Coupon struct {
	Code         string  `json:"code"`
	Discount     float64 `json:"discount"`
	DiscountType string  `json:"discount_type"`
}

// CartItem is a cart line item. Name, image and price are snapshots taken
// when the item was added, not live catalog values.
type CartItem struct {
	ID        int64   `db:"id" json:"id"`
	CartID    int64   `db:"cart_id" json:"-"`
	ProductID int64   `db:"product_id" json:"product_id"`
	Name      string  `db:"name" json:"name"`
	Image     string  `db:"image" json:"image"`
	Price     float64 `db:"price" json:"price"`
	Quantity  int     `db:"quantity" json:"quantity"`
}

// Cart holds one user's active cart. The coupon is stored flattened; the
// AppliedCoupon view is rebuilt after every load.
type Cart struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	TotalItems     int       `db:"total_items" json:"total_items"`
	TotalPrice     float64   `db:"total_price" json:"total_price"`
	CouponCode     *string   `db:"coupon_code" json:"-"`
	CouponDiscount *float64  `db:"coupon_discount" json:"-"`
	CouponType     *string   `db:"coupon_type" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	Items         []CartItem `db:"-" json:"items"`
	AppliedCoupon *Coupon    `db:"-" json:"applied_coupon,omitempty"`
}

// SetCoupon attaches a coupon, keeping the stored columns and the view in
// sync.
func (c *Cart) SetCoupon(coupon *Coupon) {
	if coupon == nil {
		c.ClearCoupon()
		return
	}
	c.AppliedCoupon = coupon
	c.CouponCode = &coupon.Code
	c.CouponDiscount = &coupon.Discount
	c.CouponType = &coupon.DiscountType
}

// ClearCoupon removes any applied coupon.
func (c *Cart) ClearCoupon() {
	c.AppliedCoupon = nil
	c.CouponCode = nil
	c.CouponDiscount = nil
	c.CouponType = nil
}

// SyncCouponView rebuilds AppliedCoupon from the stored columns.
func (c *Cart) SyncCouponView() {
	if c.CouponCode == nil || c.CouponDiscount == nil || c.CouponType == nil {
		c.AppliedCoupon = nil
		return
	}
	c.AppliedCoupon = &Coupon{
		Code:         *c.CouponCode,
		Discount:     *c.CouponDiscount,
		DiscountType: *c.CouponType,
	}
}

// RecomputeTotals derives totals from the current line items, applying the
// coupon last. Runs before every persist; caller-supplied totals are never
// trusted.
func (c *Cart) RecomputeTotals() {
	totalItems := 0
	totalPrice := 0.0
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalPrice += item.Price * float64(item.Quantity)
	}

	if c.AppliedCoupon != nil {
		switch c.AppliedCoupon.DiscountType {
		case CouponTypePercentage:
			totalPrice = totalPrice * (1 - c.AppliedCoupon.Discount/100)
		case CouponTypeFixed:
			totalPrice = math.Max(0, totalPrice-c.AppliedCoupon.Discount)
		}
	}

	c.TotalItems = totalItems
	c.TotalPrice = totalPrice
}

// Order statuses
const (
	OrderStatusProcessing = "Processing"
	OrderStatusConfirmed  = "Confirmed"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)

// Refund statuses
const (
	RefundStatusNone      = "None"
	RefundStatusRequested = "Requested"
	RefundStatusApproved  = "Approved"
	RefundStatusRejected  = "Rejected"
	RefundStatusCompleted = "Completed"
)

// orderTransitions names every legal (from, to) pair. Delivered and
// Cancelled are terminal: neither has outgoing edges.
var orderTransitions = map[string]map[string]bool{
	OrderStatusProcessing: {
		OrderStatusConfirmed: true,
		OrderStatusShipped:   true,
		OrderStatusDelivered: true,
		OrderStatusCancelled: true,
	},
	OrderStatusConfirmed: {
		OrderStatusProcessing: true,
		OrderStatusShipped:    true,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
	},
	OrderStatusShipped: {
		OrderStatusProcessing: true,
		OrderStatusConfirmed:  true,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
	},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ValidOrderStatus reports whether s is one of the five order statuses.
func ValidOrderStatus(s string) bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to string) bool {
	return orderTransitions[from][to]
}

// Cancellable reports whether an order in the given status may still be
// cancelled by its owner.
func Cancellable(status string) bool {
	return status == OrderStatusProcessing || status == OrderStatusConfirmed
}

// Payment types
const (
	PaymentTypeCard = "card"
	PaymentTypeCash = "cash"
)

// ShippingAddress is the delivery destination captured at order time.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code"`
	Phone   string `json:"phone"`
}

// PaymentInfo records how the order is paid. Gateway fields stay empty for
// cash orders.
type PaymentInfo struct {
	Type      string     `json:"type"`
	GatewayID *string    `json:"id,omitempty"`
	Status    *string    `json:"status,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// OrderItem is an immutable snapshot of a product at purchase time.
type OrderItem struct {
	ID        int64   `db:"id" json:"id"`
	OrderID   int64   `db:"order_id" json:"-"`
	ProductID int64   `db:"product_id" json:"product_id"`
	Name      string  `db:"name" json:"name"`
	Image     string  `db:"image" json:"image"`
	Price     float64 `db:"price" json:"price"`
	Quantity  int     `db:"quantity" json:"quantity"`
}

// Order is created atomically from its items and never re-derives them from
// the live catalog.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentInfo     PaymentInfo     `json:"payment_info"`
	ItemsPrice      float64         `json:"items_price"`
	TaxPrice        float64         `json:"tax_price"`
	ShippingPrice   float64         `json:"shipping_price"`
	TotalPrice      float64         `json:"total_price"`
	Status          string          `json:"status"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	TrackingNumber  *string         `json:"tracking_number,omitempty"`
	OrderNotes      *string         `json:"order_notes,omitempty"`
	RefundStatus    string          `json:"refund_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
