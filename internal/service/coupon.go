package service

import (
	"context"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// CouponValidator resolves a coupon code into a discount. A real coupon
// backend plugs in here.
type CouponValidator interface {
	Validate(ctx context.Context, code string) (*models.Coupon, error)
}

// StaticCouponValidator accepts any non-empty code and grants a fixed
// percentage discount. It stands in until a coupon backend exists.
type StaticCouponValidator struct {
	Discount float64
}

// NewStaticCouponValidator creates the stand-in validator with a 10%
// discount.
func NewStaticCouponValidator() *StaticCouponValidator {
	return &StaticCouponValidator{Discount: 10}
}

// Validate resolves the code
func (v *StaticCouponValidator) Validate(_ context.Context, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validationf("coupon code is required")
	}
	return &models.Coupon{
		Code:         code,
		Discount:     v.Discount,
		DiscountType: models.CouponTypePercentage,
	}, nil
}
