package user

import (
	"context"
	"strings"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// Collection is the document collection holding users.
const Collection = "user"

// DefaultLimit caps user listings when the caller gives no limit.
const DefaultLimit = 50

// User is a marketplace account. Vendors may own shops.
type User struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	IsVendor bool   `json:"is_vendor"`
	Bio      string `json:"bio,omitempty"`
}

// Validate checks the declared constraints of u.
func (u *User) Validate() error {
	if err := domain.Required("user", "name", u.Name); err != nil {
		return err
	}
	if err := domain.Required("user", "email", u.Email); err != nil {
		return err
	}
	if !strings.Contains(u.Email, "@") {
		return domain.Invalid("user", "email", "must contain @")
	}
	return nil
}

// Repository stores users in a document store.
type Repository struct {
	c *docstore.Collection[User]
}

// NewRepository returns a Repository over s.
func NewRepository(s docstore.Store) *Repository {
	return &Repository{c: docstore.NewCollection[User](s, Collection)}
}

// Create validates and stores u, returning its identifier.
func (r *Repository) Create(ctx context.Context, u *User) (string, error) {
	return r.c.Create(ctx, u)
}

// Get returns the user with the given identifier.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	return r.c.Get(ctx, id)
}

// List returns up to limit users, DefaultLimit when limit <= 0.
func (r *Repository) List(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.c.Find(ctx, nil, limit)
}
