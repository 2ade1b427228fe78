// Package order implements checkout: turning a user's cart into an immutable
// order while redeeming at most one coupon.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.jetify.com/typeid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/catalog"
	"github.com/xenking/quickcart/internal/domain/coupon"
	"github.com/xenking/quickcart/internal/domain/user"
	"github.com/xenking/quickcart/internal/model"
)

const (
	instrumentationName = "github.com/xenking/quickcart/internal/domain/order"
	idPrefix            = "order"
)

// Repository provides transactional access to the document.
type Repository interface {
	Update(ctx context.Context, fn func(doc *model.Document) error) error
}

// ServiceConfig holds optional telemetry providers. Nil providers disable
// telemetry.
type ServiceConfig struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service encapsulates checkout business logic.
type Service struct {
	docs  Repository
	now   func() time.Time
	newID func() (string, error)

	tracer   trace.Tracer
	placed   metric.Int64Counter
	redeemed metric.Int64Counter
}

// NewService creates an order Service backed by the given repository.
func NewService(cfg ServiceConfig, docs Repository) (*Service, error) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	meter := cfg.MeterProvider.Meter(instrumentationName)

	placed, err := meter.Int64Counter("quickcart.orders.placed",
		metric.WithDescription("Number of successful checkouts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create placed counter")
	}
	redeemed, err := meter.Int64Counter("quickcart.coupons.redeemed",
		metric.WithDescription("Number of coupons redeemed at checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create redeemed counter")
	}

	return &Service{
		docs:     docs,
		now:      time.Now,
		newID:    newOrderID,
		tracer:   cfg.TracerProvider.Tracer(instrumentationName),
		placed:   placed,
		redeemed: redeemed,
	}, nil
}

// line is a cart line resolved against the snapshot's catalog.
type line struct {
	item *model.Item
	qty  int
}

// Checkout converts the user's cart into an order. Every line is validated
// against the snapshot before anything is changed, the coupon (if any) is
// marked used only after all other checks have passed, and the snapshot is
// saved once. Any error leaves the stored document untouched.
func (s *Service) Checkout(ctx context.Context, username, couponCode string) (_ *model.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(
			attribute.String("user.name", username),
			attribute.Bool("coupon.present", couponCode != ""),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "checkout failed")
		}
		span.End()
	}()

	var placed model.Order
	err := s.docs.Update(ctx, func(doc *model.Document) error {
		o, err := s.checkout(doc, username, couponCode)
		if err != nil {
			return err
		}
		placed = *o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}

	s.placed.Add(ctx, 1)
	if placed.CouponCode != "" {
		s.redeemed.Add(ctx, 1)
	}
	span.SetAttributes(attribute.String("order.id", placed.ID))

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.String("username", username),
		zap.Int("lines", len(placed.Items)),
		zap.Stringer("subtotal", placed.Subtotal),
		zap.Stringer("discount", placed.Discount),
		zap.Stringer("total", placed.Total),
	)
	return &placed, nil
}

// checkout mutates doc in memory. It returns before the first mutation when
// any check fails.
func (s *Service) checkout(doc *model.Document, username, couponCode string) (*model.Order, error) {
	u, err := user.Get(doc, username)
	if err != nil {
		return nil, err
	}
	if len(u.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	// Read-only pass over every line. Quantities are summed per item so two
	// lines for the same item cannot jointly exceed its stock.
	items := catalog.NewResolver(doc.Items)
	lines := make([]line, 0, len(u.Cart))
	wanted := make(map[int]int, len(u.Cart))
	for _, cl := range u.Cart {
		if cl.Qty <= 0 {
			return nil, &InvalidQuantityError{ItemID: cl.ItemID}
		}
		it, err := items.Lookup(cl.ItemID)
		if err != nil {
			return nil, err
		}
		wanted[it.ID] += cl.Qty
		if it.Stock < wanted[it.ID] {
			return nil, &InsufficientStockError{
				ItemID:    it.ID,
				Requested: wanted[it.ID],
				Available: it.Stock,
			}
		}
		lines = append(lines, line{item: it, qty: cl.Qty})
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.item.Price.Mul(decimal.NewFromInt(int64(l.qty))))
	}

	var redeemed *model.Coupon
	discount := decimal.Zero
	if couponCode != "" {
		c, err := coupon.Validate(doc, couponCode, u.ID)
		if err != nil {
			return nil, err
		}
		redeemed = c
		discount = coupon.Discount(subtotal, c.PercentDiscount)
	}
	total := subtotal.Sub(discount).Round(2)

	id, err := s.newID()
	if err != nil {
		return nil, errors.Wrap(err, "generate order id")
	}

	// Mutations start here; nothing below can fail.
	if redeemed != nil {
		redeemed.Used = true
	}
	orderItems := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		l.item.Stock -= l.qty
		orderItems = append(orderItems, model.OrderItem{ItemID: l.item.ID, Qty: l.qty})
	}

	createdAt := s.now().UTC()
	o := model.Order{
		ID:         id,
		Username:   u.Username,
		Items:      orderItems,
		Subtotal:   subtotal.Round(2),
		Discount:   discount,
		Total:      total,
		CouponCode: couponCode,
		CreatedAt:  &createdAt,
	}
	doc.Orders = append(doc.Orders, o)

	u.Cart = []model.CartLine{}
	u.OrderCountUntilCoupon++
	u.TotalSpent = u.TotalSpent.Add(total).Round(2)

	return &o, nil
}

func newOrderID() (string, error) {
	tid, err := typeid.Generate(idPrefix)
	if err != nil {
		return "", err
	}
	return tid.String(), nil
}
