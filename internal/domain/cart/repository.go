package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace/internal/docstore"
)

// Repository stores carts in a document store.
type Repository struct {
	c *docstore.Collection[Cart]
}

// NewRepository returns a Repository over s.
func NewRepository(s docstore.Store) *Repository {
	return &Repository{c: docstore.NewCollection[Cart](s, Collection)}
}

// FindByUser returns the cart owned by userID or docstore.ErrNotFound.
func (r *Repository) FindByUser(ctx context.Context, userID string) (*Cart, error) {
	c, err := r.c.FindOne(ctx, docstore.Filter{docstore.Eq{Field: "user_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

// Create stores c and returns its identifier.
func (r *Repository) Create(ctx context.Context, c *Cart) (string, error) {
	if c.Items == nil {
		c.Items = []Item{}
	}
	return r.c.Create(ctx, c)
}

// SetItems replaces the items of the cart with the given identifier.
func (r *Repository) SetItems(ctx context.Context, cartID string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	fields, err := docstore.Encode(Cart{Items: items})
	if err != nil {
		return errors.Wrap(err, "encode cart items")
	}

	ok, err := r.c.UpdateFields(ctx, cartID, docstore.Document{"items": fields["items"]})
	if err != nil {
		return err
	}
	if !ok {
		return ErrCartNotFound
	}
	return nil
}
