package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// updatable lists the fields a patch may touch.
var updatable = map[string]struct{}{
	"shop_id":     {},
	"vendor_id":   {},
	"title":       {},
	"description": {},
	"price":       {},
	"category":    {},
	"images":      {},
	"stock":       {},
	"tags":        {},
}

// Repository stores products in a document store.
type Repository struct {
	c *docstore.Collection[Product]
}

// NewRepository returns a Repository over s.
func NewRepository(s docstore.Store) *Repository {
	return &Repository{c: docstore.NewCollection[Product](s, Collection)}
}

// Create validates and stores p, returning its identifier.
func (r *Repository) Create(ctx context.Context, p *Product) (string, error) {
	p.normalize()
	return r.c.Create(ctx, p)
}

// Get returns the product with the given identifier.
func (r *Repository) Get(ctx context.Context, id string) (*Product, error) {
	return r.c.Get(ctx, id)
}

// List returns the products selected by q.
func (r *Repository) List(ctx context.Context, q Query) ([]Product, error) {
	return r.c.Find(ctx, q.Filter(), q.limit())
}

// Update applies patch to the product and returns the updated value. The
// patched product must still pass Validate; unknown fields are rejected.
func (r *Repository) Update(ctx context.Context, id string, patch docstore.Document) (*Product, error) {
	current, err := r.c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, err := Apply(*current, patch)
	if err != nil {
		return nil, err
	}

	encoded, err := docstore.Encode(merged)
	if err != nil {
		return nil, errors.Wrap(err, "encode product")
	}
	fields := make(docstore.Document, len(patch))
	for k := range docstore.WithoutID(patch) {
		fields[k] = encoded[k]
	}

	ok, err := r.c.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(docstore.ErrNotFound, "update product %q", id)
	}
	return &merged, nil
}

// Delete removes the product and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return r.c.Delete(ctx, id)
}

// Apply returns p with patch merged in. Identifier keys in patch are ignored.
func Apply(p Product, patch docstore.Document) (Product, error) {
	doc, err := docstore.Encode(p)
	if err != nil {
		return Product{}, errors.Wrap(err, "encode product")
	}
	for k, v := range docstore.WithoutID(patch) {
		if _, ok := updatable[k]; !ok {
			return Product{}, domain.Invalid("product", k, "is not updatable")
		}
		doc[k] = v
	}

	var out Product
	if err := docstore.Decode(doc, &out); err != nil {
		return Product{}, domain.Invalid("product", "patch", "has invalid field types")
	}
	out.ID = p.ID
	out.normalize()
	if err := out.Validate(); err != nil {
		return Product{}, err
	}
	return out, nil
}
