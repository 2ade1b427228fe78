package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/user"
	"github.com/xenking/quickcart/internal/model"
)

const (
	instrumentationName = "github.com/xenking/quickcart/internal/domain/coupon"

	codeLength      = 8
	maxCodeAttempts = 16
)

// ErrCodeSpaceExhausted is returned when no unused code could be generated.
var ErrCodeSpaceExhausted = errors.New("could not generate a unique coupon code")

// IssueRequest holds the input for issuing a coupon.
type IssueRequest struct {
	Email    string
	Override bool
}

// IssuerConfig holds non-repository configuration for the Issuer.
type IssuerConfig struct {
	// Validity is added to the issue date to compute expires_on.
	Validity time.Duration

	// Nil providers disable telemetry.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Issuer creates coupons for users that reached the order threshold.
type Issuer struct {
	docs     Repository
	validity time.Duration
	now      func() time.Time
	newCode  func() string

	tracer trace.Tracer
	issued metric.Int64Counter
}

// NewIssuer creates an Issuer backed by the given repository.
func NewIssuer(cfg IssuerConfig, docs Repository) (*Issuer, error) {
	if cfg.Validity <= 0 {
		cfg.Validity = 365 * 24 * time.Hour
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	issued, err := cfg.MeterProvider.Meter(instrumentationName).Int64Counter("quickcart.coupons.issued",
		metric.WithDescription("Number of coupons issued"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create issued counter")
	}

	return &Issuer{
		docs:     docs,
		validity: cfg.Validity,
		now:      time.Now,
		newCode:  randomCode,
		tracer:   cfg.TracerProvider.Tracer(instrumentationName),
		issued:   issued,
	}, nil
}

// Issue resolves the user by email, checks eligibility against the current
// policy, stores a new unused coupon and lowers the user's eligibility
// counter by nth_order (floored at zero). Everything is saved at once.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (_ *model.Coupon, rerr error) {
	ctx, span := i.tracer.Start(ctx, "coupon.Issue",
		trace.WithAttributes(attribute.Bool("coupon.override", req.Override)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "issue failed")
		}
		span.End()
	}()

	var issued model.Coupon
	err := i.docs.Update(ctx, func(doc *model.Document) error {
		u, err := user.ByEmail(doc, req.Email)
		if err != nil {
			return err
		}

		policy := doc.Config
		eligible := u.OrderCountUntilCoupon >= policy.NthOrder
		if !eligible && !req.Override {
			return ErrNotEligible
		}

		code, err := i.uniqueCode(doc)
		if err != nil {
			return err
		}

		c := &model.Coupon{
			Code:            code,
			UserID:          u.ID,
			PercentDiscount: policy.CouponPercent,
			ExpiresOn:       model.NewDate(i.now().Add(i.validity)),
		}
		doc.Coupons[code] = c
		u.OrderCountUntilCoupon = max(u.OrderCountUntilCoupon-policy.NthOrder, 0)

		issued = *c
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "issue coupon")
	}
	i.issued.Add(ctx, 1, metric.WithAttributes(attribute.Bool("override", req.Override)))

	zctx.From(ctx).Info("Coupon issued",
		zap.String("code", issued.Code),
		zap.String("user_id", issued.UserID),
		zap.Int("percent", issued.PercentDiscount),
		zap.Bool("override", req.Override),
	)
	return &issued, nil
}

func (i *Issuer) uniqueCode(doc *model.Document) (string, error) {
	for range maxCodeAttempts {
		code := i.newCode()
		if _, taken := doc.Coupons[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// randomCode returns codeLength upper-case hex characters.
func randomCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLength])
}
