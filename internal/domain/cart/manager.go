package cart

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/samber/lo"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
)

// Store defines the cart persistence the Manager relies on.
type Store interface {
	FindByUser(ctx context.Context, userID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) (string, error)
	SetItems(ctx context.Context, cartID string, items []Item) error
}

var _ Store = (*Repository)(nil)

// Manager implements the cart operations. Writes to one user's cart go
// through the Locker.
type Manager struct {
	carts  Store
	locker Locker
}

// NewManager creates a Manager. A nil locker disables locking.
func NewManager(carts Store, locker Locker) *Manager {
	if locker == nil {
		locker = NopLocker{}
	}
	return &Manager{carts: carts, locker: locker}
}

// GetOrCreate returns the user's cart, creating an empty one on first use.
// Reading an existing cart does not take the lock; only creation does.
func (m *Manager) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	if err := domain.Required("cart", "user_id", userID); err != nil {
		return nil, err
	}
	c, err := m.carts.FindByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, errors.Wrap(err, "find cart")
	}

	unlock, err := m.locker.Lock(ctx, LockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	return m.getOrCreate(ctx, userID)
}

func (m *Manager) getOrCreate(ctx context.Context, userID string) (*Cart, error) {
	c, err := m.carts.FindByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, errors.Wrap(err, "find cart")
	}

	c = &Cart{UserID: userID, Items: []Item{}}
	id, err := m.carts.Create(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	c.ID = id
	return c, nil
}

// AddItem adds qty units of productID to the user's cart, creating the cart
// if needed. An existing line for the product has its quantity increased
// instead of a second line being appended. Stock is not checked.
func (m *Manager) AddItem(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if err := domain.Required("cart", "user_id", userID); err != nil {
		return nil, err
	}
	if err := domain.Required("cart item", "product_id", productID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, domain.Invalid("cart item", "qty", "must be greater than 0")
	}

	unlock, err := m.locker.Lock(ctx, LockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := m.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := mergeItem(c.Items, Item{ProductID: productID, Qty: qty})
	if err != nil {
		return nil, err
	}
	c.Items = items
	if err := m.carts.SetItems(ctx, c.ID, c.Items); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem drops every line for productID from the user's cart. Removing a
// product that is not in the cart leaves it unchanged.
func (m *Manager) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	if err := domain.Required("cart", "user_id", userID); err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, LockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := m.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, errors.Wrap(err, "find cart")
	}

	c.Items = lo.Reject(c.Items, func(it Item, _ int) bool {
		return it.ProductID == productID
	})
	if err := m.carts.SetItems(ctx, c.ID, c.Items); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// mergeItem adds add to items. add.Qty must be positive.
func mergeItem(items []Item, add Item) ([]Item, error) {
	if _, i, ok := lo.FindIndexOf(items, func(it Item) bool {
		return it.ProductID == add.ProductID
	}); ok {
		if items[i].Qty > math.MaxInt-add.Qty {
			return nil, domain.Invalid("cart item", "qty", "exceeds the maximum quantity")
		}
		items[i].Qty += add.Qty
		return items, nil
	}
	return append(items, add), nil
}
