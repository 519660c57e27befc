package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// Collection is the document collection holding carts.
const Collection = "cart"

var (
	// ErrCartNotFound is returned when the user has no cart.
	ErrCartNotFound = errors.New("cart not found")
	// ErrLocked is returned when another request holds the user's cart.
	ErrLocked = errors.New("cart is locked by another request")
)

// Item is a cart line. A cart holds at most one Item per product.
type Item struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Cart is the long-lived basket of a user, looked up by UserID.
type Cart struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

// Locker serializes work on a single user's cart.
type Locker interface {
	// Lock acquires key or fails with ErrLocked. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker never blocks.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// LockKey returns the Locker key guarding userID's cart.
func LockKey(userID string) string {
	return "cart:" + userID
}
