package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/coupon-engine/internal/domain/coupon"

// ServiceConfig holds optional settings for a Service. Zero values select
// sensible defaults.
type ServiceConfig struct {
	// Location is used to interpret coupon dates. Defaults to time.Local.
	Location *time.Location
	// MaxAttempts bounds redemption retries per selection.
	MaxAttempts int
	// Now overrides the clock used for validity windows.
	Now func() time.Time

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service is the entry point the API layer calls into: coupon creation,
// listing and best-coupon redemption.
type Service struct {
	catalog  Catalog
	selector *Selector
	loc      *time.Location
	tracer   trace.Tracer

	created   metric.Int64Counter
	redeemed  metric.Int64Counter
	empty     metric.Int64Counter
	conflicts metric.Int64Counter
}

// NewService creates a Service over the given catalog and ledger.
func NewService(catalog Catalog, ledger Ledger, cfg ServiceConfig) (*Service, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	opts := []SelectorOption{WithMaxAttempts(cfg.MaxAttempts)}
	if cfg.Now != nil {
		opts = append(opts, WithClock(cfg.Now))
	}

	s := &Service{
		catalog:  catalog,
		selector: NewSelector(catalog, ledger, opts...),
		loc:      cfg.Location,
		tracer:   cfg.TracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var err error
	if s.created, err = meter.Int64Counter("coupon.created",
		metric.WithDescription("Coupons added to the catalog")); err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	if s.redeemed, err = meter.Int64Counter("coupon.redeemed",
		metric.WithDescription("Best-coupon selections that redeemed a coupon")); err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	if s.empty, err = meter.Int64Counter("coupon.selection.empty",
		metric.WithDescription("Best-coupon selections with no applicable coupon")); err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	if s.conflicts, err = meter.Int64Counter("coupon.ledger.conflicts",
		metric.WithDescription("Redemptions refused by the usage ledger after a passing pre-check")); err != nil {
		return nil, errors.Wrap(err, "create counter")
	}

	return s, nil
}

// CreateCoupon validates data and adds the resulting coupon to the catalog.
// It returns a *ValidationError for malformed input and an error matching
// ErrDuplicateCoupon when the code is taken; in both cases nothing is stored.
func (s *Service) CreateCoupon(ctx context.Context, data CouponData) (*Coupon, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.create",
		trace.WithAttributes(attribute.String("coupon.code", data.Code)))
	defer span.End()

	c, err := data.Build(s.loc)
	if err != nil {
		span.SetStatus(codes.Error, "invalid coupon")
		return nil, err
	}

	if err := s.catalog.Insert(c); err != nil {
		span.SetStatus(codes.Error, "insert coupon")
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("coupon.type", string(c.DiscountType))))
	zctx.From(ctx).Info("Coupon created",
		zap.String("code", c.Code),
		zap.String("type", string(c.DiscountType)),
		zap.Time("start", c.StartDate),
		zap.Time("end", c.EndDate),
	)
	return c.Clone(), nil
}

// ListCoupons returns copies of every coupon in the catalog.
func (s *Service) ListCoupons(_ context.Context) []Coupon {
	coupons := s.catalog.Snapshot()
	for i := range coupons {
		coupons[i] = *coupons[i].Clone()
	}
	return coupons
}

// GetCoupon returns a copy of the coupon with the given code or
// ErrCouponNotFound.
func (s *Service) GetCoupon(_ context.Context, code string) (*Coupon, error) {
	c, ok := s.catalog.Get(code)
	if !ok {
		return nil, errors.Wrapf(ErrCouponNotFound, "code %q", code)
	}
	return c.Clone(), nil
}

// FindBestCoupon selects and redeems the best coupon for user and cart.
// Finding nothing is reported as an empty Selection with a nil error.
func (s *Service) FindBestCoupon(ctx context.Context, user UserContext, cart Cart) (Selection, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.find_best",
		trace.WithAttributes(
			attribute.String("user.id", user.UserID),
			attribute.Int("cart.lines", len(cart.Items)),
		))
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("user_id", user.UserID))

	sel, err := s.selector.FindBest(user, cart)
	if sel.Conflicts > 0 {
		s.conflicts.Add(ctx, int64(sel.Conflicts))
		lg.Warn("Redemption refused by ledger, reselected", zap.Int("conflicts", sel.Conflicts))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger conflict")
		return Selection{}, err
	}

	if !sel.Found() {
		s.empty.Add(ctx, 1)
		lg.Debug("No applicable coupon")
		return sel, nil
	}

	span.SetAttributes(
		attribute.String("coupon.code", sel.Coupon.Code),
		attribute.String("coupon.discount", sel.Discount.String()),
	)
	sel.Coupon = sel.Coupon.Clone()
	s.redeemed.Add(ctx, 1, metric.WithAttributes(attribute.String("coupon.type", string(sel.Coupon.DiscountType))))
	lg.Debug("Coupon redeemed",
		zap.String("code", sel.Coupon.Code),
		zap.Stringer("discount", sel.Discount),
	)
	return sel, nil
}
