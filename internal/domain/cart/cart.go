// Package cart manages the per-user cart stored in the document.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickcart/internal/domain/catalog"
	"github.com/xenking/quickcart/internal/domain/user"
	"github.com/xenking/quickcart/internal/model"
)

// MaxLineQuantity caps the quantity of a single cart line, including the
// total after merging.
const MaxLineQuantity = 1_000_000

// ErrInvalidQuantity is returned when a quantity is not positive or the line
// would exceed MaxLineQuantity.
var ErrInvalidQuantity = errors.New("quantity must be between 1 and 1000000")

// Repository provides transactional access to the document.
type Repository interface {
	View(ctx context.Context, fn func(doc *model.Document) error) error
	Update(ctx context.Context, fn func(doc *model.Document) error) error
}

// Line is a cart line joined with its catalog entry.
type Line struct {
	ItemID    int             `json:"item_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is a priced cart.
type View struct {
	Items []Line          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Service encapsulates cart business logic.
type Service struct {
	docs Repository
}

// NewService creates a cart Service.
func NewService(docs Repository) *Service {
	return &Service{docs: docs}
}

// Add puts qty units of itemID in the user's cart, merging with an existing
// line for the same item. Stock is not checked here; checkout does that.
func (s *Service) Add(ctx context.Context, username string, itemID, qty int) (*View, error) {
	if qty <= 0 || qty > MaxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	var v *View
	err := s.docs.Update(ctx, func(doc *model.Document) error {
		u, err := user.Get(doc, username)
		if err != nil {
			return err
		}
		items := catalog.NewResolver(doc.Items)
		if _, err := items.Lookup(itemID); err != nil {
			return err
		}

		merged := false
		for i := range u.Cart {
			if u.Cart[i].ItemID == itemID {
				if u.Cart[i].Qty > MaxLineQuantity-qty {
					return ErrInvalidQuantity
				}
				u.Cart[i].Qty += qty
				merged = true
				break
			}
		}
		if !merged {
			u.Cart = append(u.Cart, model.CartLine{ItemID: itemID, Qty: qty})
		}

		v = price(u.Cart, items)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "add to cart")
	}
	return v, nil
}

// View returns the user's cart priced against the current catalog.
func (s *Service) View(ctx context.Context, username string) (*View, error) {
	var v *View
	err := s.docs.View(ctx, func(doc *model.Document) error {
		u, err := user.Get(doc, username)
		if err != nil {
			return err
		}
		v = price(u.Cart, catalog.NewResolver(doc.Items))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "view cart")
	}
	return v, nil
}

// price joins lines with the catalog. Lines whose item has since been
// removed are listed without a price.
func price(lines []model.CartLine, items *catalog.Resolver) *View {
	v := &View{Items: make([]Line, 0, len(lines)), Total: decimal.Zero}
	for _, cl := range lines {
		l := Line{ItemID: cl.ItemID, Qty: cl.Qty, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
		if it, err := items.Lookup(cl.ItemID); err == nil {
			l.Name = it.Name
			l.UnitPrice = it.Price
			l.LineTotal = it.Price.Mul(decimal.NewFromInt(int64(cl.Qty))).Round(2)
		}
		v.Items = append(v.Items, l)
		v.Total = v.Total.Add(l.LineTotal)
	}
	v.Total = v.Total.Round(2)
	return v
}
