// Package coupon validates and issues single-use, user-bound discount coupons.
package coupon

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/quickcart/internal/model"
)

// Sentinel errors for coupon validation and issuance.
var (
	ErrNotFound    = errors.New("invalid coupon code")
	ErrAlreadyUsed = errors.New("coupon already used")
	ErrNotOwned    = errors.New("coupon does not belong to user")
	// ErrNotEligible is returned by issuance when the user has not placed
	// enough orders and no override was requested.
	ErrNotEligible = errors.New("user not eligible for coupon")
)

// Repository provides transactional access to the document.
type Repository interface {
	Update(ctx context.Context, fn func(doc *model.Document) error) error
}
