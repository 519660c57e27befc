package review

import (
	"context"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// Collection is the document collection holding reviews.
const Collection = "review"

// DefaultLimit caps review listings when the caller gives no limit.
const DefaultLimit = 100

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating of a product.
type Review struct {
	ID        string `json:"id,omitempty"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// Validate checks the declared constraints of r.
func (r *Review) Validate() error {
	if err := domain.Required("review", "product_id", r.ProductID); err != nil {
		return err
	}
	if err := domain.Required("review", "user_id", r.UserID); err != nil {
		return err
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return domain.Invalid("review", "rating", "must be between 1 and 5")
	}
	return nil
}

// ListQuery selects reviews by product and/or author.
type ListQuery struct {
	ProductID string
	UserID    string
	Limit     int
}

// Filter compiles q into a store filter. Empty fields are left out.
func (q ListQuery) Filter() docstore.Filter {
	var f docstore.Filter
	if q.ProductID != "" {
		f = append(f, docstore.Eq{Field: "product_id", Value: q.ProductID})
	}
	if q.UserID != "" {
		f = append(f, docstore.Eq{Field: "user_id", Value: q.UserID})
	}
	return f
}

// Repository stores reviews in a document store.
type Repository struct {
	c *docstore.Collection[Review]
}

func NewRepository(s docstore.Store) *Repository {
	return &Repository{c: docstore.NewCollection[Review](s, Collection)}
}

func (r *Repository) Create(ctx context.Context, rv *Review) (string, error) {
	return r.c.Create(ctx, rv)
}

func (r *Repository) List(ctx context.Context, q ListQuery) ([]Review, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.c.Find(ctx, q.Filter(), limit)
}
