package order

import (
	"context"
	"time"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// Collection is the document collection holding orders.
const Collection = "order"

// DefaultLimit caps order listings when the caller gives no limit.
const DefaultLimit = 50

// StatusPaid is the status of every order placed through checkout.
const StatusPaid = "paid"

// Order is the immutable record of a checkout. Item prices are snapshots
// taken at checkout time.
type Order struct {
	ID         string       `json:"id,omitempty"`
	UserID     string       `json:"user_id"`
	Items      []Item       `json:"items"`
	Total      domain.Money `json:"total"`
	Status     string       `json:"status"`
	PaymentRef string       `json:"payment_ref,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Item is an order line.
type Item struct {
	ProductID string       `json:"product_id"`
	Qty       int          `json:"qty"`
	Price     domain.Money `json:"price"`
}

// Validate checks the declared constraints of o.
func (o *Order) Validate() error {
	if err := domain.Required("order", "user_id", o.UserID); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return domain.Invalid("order", "items", "must not be empty")
	}
	for _, it := range o.Items {
		if it.Qty <= 0 {
			return domain.Invalid("order", "items.qty", "must be greater than 0")
		}
		if it.Price.IsNegative() {
			return domain.Invalid("order", "items.price", "must not be negative")
		}
	}
	if o.Total.IsNegative() {
		return domain.Invalid("order", "total", "must not be negative")
	}
	return domain.Required("order", "status", o.Status)
}

// ListQuery selects orders, optionally by user.
type ListQuery struct {
	UserID string
	Limit  int
}

// Filter compiles q into a store filter.
func (q ListQuery) Filter() docstore.Filter {
	var f docstore.Filter
	if q.UserID != "" {
		f = append(f, docstore.Eq{Field: "user_id", Value: q.UserID})
	}
	return f
}

// Repository stores orders in a document store.
type Repository struct {
	c *docstore.Collection[Order]
}

// NewRepository returns a Repository over s.
func NewRepository(s docstore.Store) *Repository {
	return &Repository{c: docstore.NewCollection[Order](s, Collection)}
}

// Create validates and stores o, returning its identifier.
func (r *Repository) Create(ctx context.Context, o *Order) (string, error) {
	return r.c.Create(ctx, o)
}

func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	return r.c.Get(ctx, id)
}

func (r *Repository) List(ctx context.Context, q ListQuery) ([]Order, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.c.Find(ctx, q.Filter(), limit)
}
