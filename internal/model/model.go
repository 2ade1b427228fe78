// Package model defines the typed records persisted in the store document.
package model

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Item is a catalog entry. Stock never drops below zero.
type Item struct {
	ID    int             `json:"id" validate:"gt=0"`
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
	Stock int             `json:"stock" validate:"gte=0"`
}

// CartLine is a single item/quantity pair in a user's cart.
type CartLine struct {
	ItemID int `json:"item_id" validate:"gt=0"`
	Qty    int `json:"qty" validate:"gt=0"`
}

// User holds account data together with the cart and coupon eligibility
// counters.
type User struct {
	ID       string     `json:"id" validate:"required"`
	Username string     `json:"username" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password,omitempty"`
	IsAdmin  bool       `json:"is_admin"`
	Cart     []CartLine `json:"cart" validate:"dive"`
	// OrderCountUntilCoupon tracks progress toward the next coupon: it grows
	// by one per checkout and shrinks by nth_order per issuance.
	OrderCountUntilCoupon int             `json:"order_count_until_coupon" validate:"gte=0"`
	TotalSpent            decimal.Decimal `json:"total_spent" validate:"gte=0"`
}

// Coupon is a single-use percentage discount owned by one user.
type Coupon struct {
	// Code is the key of the coupon mapping; it is not part of the stored value.
	Code            string `json:"-"`
	UserID          string `json:"user_id" validate:"required"`
	PercentDiscount int    `json:"percent_discount" validate:"gte=0,lte=100"`
	Used            bool   `json:"used"`
	ExpiresOn       Date   `json:"expires_on"`
}

// OrderItem is an immutable copy of a purchased cart line.
type OrderItem struct {
	ItemID int `json:"item_id" validate:"gt=0"`
	Qty    int `json:"qty" validate:"gt=0"`
}

// Order is an immutable record of a completed checkout.
type Order struct {
	ID         string          `json:"id" validate:"required"`
	Username   string          `json:"username" validate:"required"`
	Items      []OrderItem     `json:"items" validate:"dive"`
	Subtotal   decimal.Decimal `json:"subtotal" validate:"gte=0"`
	Discount   decimal.Decimal `json:"discount" validate:"gte=0"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}

// Policy is the coupon policy stored alongside the data. It is read on every
// operation that needs it and never cached.
type Policy struct {
	NthOrder      int `json:"nth_order" validate:"gte=0"`
	CouponPercent int `json:"coupon_percent" validate:"gte=0,lte=100"`
}

// ErrCorrupt is returned when a loaded document does not match the schema.
var ErrCorrupt = errors.New("document does not match schema")

// dateLayout is the wire format of Date.
const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String implements fmt.Stringer.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.Errorf("date %s: expected quoted string", s)
	}
	t, err := time.Parse(dateLayout, s[1:len(s)-1])
	if err != nil {
		return errors.Wrapf(err, "parse date %s", s)
	}
	d.Time = t
	return nil
}
