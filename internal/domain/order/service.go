package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/product"
)

const instrumentationName = "github.com/xenking/marketplace/internal/domain/order"

// ErrEmptyCart is returned when checkout finds no cart or nothing to order.
var ErrEmptyCart = errors.New("cart is empty")

// CartStore is the cart persistence used by checkout.
type CartStore interface {
	FindByUser(ctx context.Context, userID string) (*cart.Cart, error)
	SetItems(ctx context.Context, cartID string, items []cart.Item) error
}

// ProductGetter resolves products referenced by cart lines.
type ProductGetter interface {
	Get(ctx context.Context, id string) (*product.Product, error)
}

// Store persists placed orders.
type Store interface {
	Create(ctx context.Context, o *Order) (string, error)
}

var (
	_ CartStore     = (*cart.Repository)(nil)
	_ ProductGetter = (*product.Repository)(nil)
	_ Store         = (*Repository)(nil)
)

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	OrderID string
	Total   decimal.Decimal
	Status  string
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes checkouts of the same user.
func WithLocker(l cart.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithTelemetry records checkout spans and counters.
func WithTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
		s.tracerProvider = tp
	}
}

// WithClock overrides the order timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds parallel product lookups per checkout.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Service is the checkout engine: it turns a user's cart into an order.
type Service struct {
	carts    CartStore
	products ProductGetter
	orders   Store

	locker         cart.Locker
	now            func() time.Time
	concurrency    int
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	tracer  trace.Tracer
	placed  metric.Int64Counter
	skipped metric.Int64Counter
}

// NewService creates a checkout Service with the required domain
// dependencies.
func NewService(carts CartStore, products ProductGetter, orders Store, opts ...Option) *Service {
	s := &Service{
		carts:          carts,
		products:       products,
		orders:         orders,
		locker:         cart.NopLocker{},
		now:            time.Now,
		concurrency:    8,
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.placed, err = meter.Int64Counter("marketplace.checkout.orders",
		metric.WithDescription("Orders placed through checkout"),
	); err != nil {
		s.placed = metricnoop.Int64Counter{}
	}
	if s.skipped, err = meter.Int64Counter("marketplace.checkout.skipped_lines",
		metric.WithDescription("Cart lines skipped because the product could not be resolved"),
	); err != nil {
		s.skipped = metricnoop.Int64Counter{}
	}
	return s
}

// Checkout places an order for everything in the user's cart.
//
// Prices are read from the current products and frozen into the order.
// Lines whose product no longer exists, or whose stored product id is
// malformed, are skipped. The cart is emptied but kept. Nothing is written
// when the cart is absent or no line can be ordered.
func (s *Service) Checkout(ctx context.Context, userID string) (_ *CheckoutResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(otelcodes.Error, rerr.Error())
		}
		span.End()
	}()

	unlock, err := s.locker.Lock(ctx, cart.LockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "find cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	products, err := s.resolve(ctx, c.Items)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	items := make([]Item, 0, len(c.Items))
	total := decimal.Zero
	skipped := 0
	for i, line := range c.Items {
		p := products[i]
		if p == nil || line.Qty <= 0 {
			skipped++
			lg.Warn("Skipping cart line",
				zap.String("user_id", userID),
				zap.String("product_id", line.ProductID),
				zap.Int("qty", line.Qty),
			)
			continue
		}
		qty := decimal.NewFromInt(int64(line.Qty))
		total = total.Add(p.Price.Mul(qty))
		items = append(items, Item{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			Price:     p.Price,
		})
	}
	if skipped > 0 {
		s.skipped.Add(ctx, int64(skipped))
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	o := &Order{
		UserID:    userID,
		Items:     items,
		Total:     domain.NewMoney(total.RoundBank(2)),
		Status:    StatusPaid,
		CreatedAt: s.now().UTC(),
	}
	id, err := s.orders.Create(ctx, o)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	o.ID = id
	s.placed.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("order.id", id),
		attribute.Int("order.lines", len(items)),
	)

	if err := s.carts.SetItems(ctx, c.ID, []cart.Item{}); err != nil {
		return nil, errors.Wrapf(err, "clear cart after order %s", id)
	}

	lg.Info("Order placed",
		zap.String("order_id", id),
		zap.String("user_id", userID),
		zap.Stringer("total", o.Total),
	)
	return &CheckoutResult{
		OrderID: id,
		Total:   o.Total.Decimal,
		Status:  o.Status,
	}, nil
}

// resolve looks up the product of every cart line concurrently. The result
// is index-aligned with items; unresolvable products are nil.
func (s *Service) resolve(ctx context.Context, items []cart.Item) ([]*product.Product, error) {
	out := make([]*product.Product, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, line := range items {
		g.Go(func() error {
			p, err := s.products.Get(gctx, line.ProductID)
			switch {
			case err == nil:
				out[i] = p
			case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidID):
			default:
				return errors.Wrapf(err, "get product %q", line.ProductID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
