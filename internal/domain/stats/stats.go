// Package stats builds per-user purchase reports for admins.
package stats

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickcart/internal/domain/user"
	"github.com/xenking/quickcart/internal/model"
)

// Repository provides read access to the document.
type Repository interface {
	View(ctx context.Context, fn func(doc *model.Document) error) error
}

// CouponSummary is one coupon owned by a user.
type CouponSummary struct {
	Code            string     `json:"code"`
	PercentDiscount int        `json:"percent_discount"`
	Used            bool       `json:"used"`
	ExpiresOn       model.Date `json:"expires_on"`
}

// UserStats aggregates a user's orders and coupons.
type UserStats struct {
	Username              string          `json:"username"`
	Email                 string          `json:"email"`
	OrdersCount           int             `json:"orders_count"`
	ItemsPurchasedCount   int             `json:"items_purchased_count"`
	TotalSpent            decimal.Decimal `json:"total_spent"`
	TotalDiscount         decimal.Decimal `json:"total_discount"`
	OrderCountUntilCoupon int             `json:"order_count_until_coupon"`
	Coupons               []CouponSummary `json:"coupons"`
}

// Service computes reports over one snapshot.
type Service struct {
	docs Repository
}

// NewService creates a stats Service.
func NewService(docs Repository) *Service {
	return &Service{docs: docs}
}

// All returns stats for every user, sorted by username.
func (s *Service) All(ctx context.Context) ([]UserStats, error) {
	var out []UserStats
	err := s.docs.View(ctx, func(doc *model.Document) error {
		idx := index(doc)
		out = make([]UserStats, 0, len(doc.Users))
		for _, u := range doc.Users {
			out = append(out, idx.build(u))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "collect stats")
	}
	slices.SortFunc(out, func(a, b UserStats) int {
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}

// ByEmail returns stats for the user registered with email.
func (s *Service) ByEmail(ctx context.Context, email string) (*UserStats, error) {
	var out UserStats
	err := s.docs.View(ctx, func(doc *model.Document) error {
		u, err := user.ByEmail(doc, email)
		if err != nil {
			return err
		}
		out = index(doc).build(u)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "collect user stats")
	}
	return &out, nil
}

type docIndex struct {
	orders  map[string][]*model.Order
	coupons map[string][]*model.Coupon
}

func index(doc *model.Document) docIndex {
	idx := docIndex{
		orders:  make(map[string][]*model.Order),
		coupons: make(map[string][]*model.Coupon),
	}
	for i := range doc.Orders {
		o := &doc.Orders[i]
		idx.orders[o.Username] = append(idx.orders[o.Username], o)
	}
	for _, c := range doc.Coupons {
		idx.coupons[c.UserID] = append(idx.coupons[c.UserID], c)
	}
	return idx
}

func (idx docIndex) build(u *model.User) UserStats {
	st := UserStats{
		Username:              u.Username,
		Email:                 u.Email,
		TotalSpent:            u.TotalSpent.Round(2),
		TotalDiscount:         decimal.Zero,
		OrderCountUntilCoupon: u.OrderCountUntilCoupon,
		Coupons:               []CouponSummary{},
	}
	for _, o := range idx.orders[u.Username] {
		st.OrdersCount++
		st.TotalDiscount = st.TotalDiscount.Add(o.Discount)
		for _, it := range o.Items {
			st.ItemsPurchasedCount += it.Qty
		}
	}
	st.TotalDiscount = st.TotalDiscount.Round(2)

	for _, c := range idx.coupons[u.ID] {
		st.Coupons = append(st.Coupons, CouponSummary{
			Code:            c.Code,
			PercentDiscount: c.PercentDiscount,
			Used:            c.Used,
			ExpiresOn:       c.ExpiresOn,
		})
	}
	slices.SortFunc(st.Coupons, func(a, b CouponSummary) int {
		return strings.Compare(a.Code, b.Code)
	})
	return st
}
