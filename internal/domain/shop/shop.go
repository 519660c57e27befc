package shop

import (
	"context"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// Collection is the document collection holding shops.
const Collection = "shop"

// DefaultLimit caps shop listings when the caller gives no limit.
const DefaultLimit = 50

// Shop is a storefront owned by a vendor. A vendor may own several shops.
type Shop struct {
	ID          string `json:"id,omitempty"`
	VendorID    string `json:"vendor_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Banner      string `json:"banner,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

// Validate checks the declared constraints of s.
func (s *Shop) Validate() error {
	if err := domain.Required("shop", "vendor_id", s.VendorID); err != nil {
		return err
	}
	return domain.Required("shop", "name", s.Name)
}

// ListQuery selects shops, optionally by vendor.
type ListQuery struct {
	VendorID string
	Limit    int
}

// Filter compiles q into a store filter.
func (q ListQuery) Filter() docstore.Filter {
	var f docstore.Filter
	if q.VendorID != "" {
		f = append(f, docstore.Eq{Field: "vendor_id", Value: q.VendorID})
	}
	return f
}

// Repository stores shops in a document store.
type Repository struct {
	c *docstore.Collection[Shop]
}

// NewRepository returns a Repository over s.
func NewRepository(s docstore.Store) *Repository {
	return &Repository{c: docstore.NewCollection[Shop](s, Collection)}
}

func (r *Repository) Create(ctx context.Context, s *Shop) (string, error) {
	return r.c.Create(ctx, s)
}

func (r *Repository) Get(ctx context.Context, id string) (*Shop, error) {
	return r.c.Get(ctx, id)
}

func (r *Repository) List(ctx context.Context, q ListQuery) ([]Shop, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.c.Find(ctx, q.Filter(), limit)
}
