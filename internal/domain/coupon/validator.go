package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/quickcart/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Validate checks that code exists, is unused and belongs to userID, in that
// order. The snapshot is not touched: marking the coupon used is left to the
// caller once every other check of the operation has passed.
func Validate(doc *model.Document, code, userID string) (*model.Coupon, error) {
	c, ok := doc.Coupons[code]
	if !ok || c == nil {
		return nil, ErrNotFound
	}
	if c.Used {
		return nil, ErrAlreadyUsed
	}
	if c.UserID != userID {
		return nil, ErrNotOwned
	}
	return c, nil
}

// Discount returns subtotal * percent / 100 rounded to 2 decimal places.
func Discount(subtotal decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return decimal.Zero
	}
	return subtotal.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Round(2)
}
