package dummydb

import (
	"context"
	"fmt"
	"sort"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/store"
)

type storeRepository struct {
	db *DB
}

var _ store.Repository = (*storeRepository)(nil) // interface compliance check

func NewStoreRepository(db *DB) store.Repository {
	return &storeRepository{db: db}
}

// Items

func (repo *storeRepository) QueryItems(ctx context.Context, filter store.ItemFilter, exec ...core.DBExecutor) ([]store.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]store.Item, 0, len(repo.db.data.items))
	for _, item := range repo.db.data.items {
		if (filter.IsActive != nil && item.IsActive != *filter.IsActive) || (filter.ItemType != "" && item.ItemType != filter.ItemType) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].DisplayOrder != items[j].DisplayOrder {
			return items[i].DisplayOrder < items[j].DisplayOrder
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (repo *storeRepository) GetItem(ctx context.Context, id string, exec ...core.DBExecutor) (store.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if item, ok := repo.db.data.items[id]; ok {
		return item, nil
	}
	return store.Item{}, store.ErrItemNotFound
}

func (repo *storeRepository) CreateItem(ctx context.Context, item store.Item, exec ...core.DBExecutor) (store.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	item.ID = newID()
	item.TotalCost = 0
	repo.db.data.items[item.ID] = item
	return item, nil
}

func (repo *storeRepository) UpdateItem(ctx context.Context, item store.Item, exec ...core.DBExecutor) (store.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.items[item.ID]; !ok {
		return store.Item{}, store.ErrItemNotFound
	}
	item.TotalCost = 0
	repo.db.data.items[item.ID] = item
	return item, nil
}

func (repo *storeRepository) DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.items[id]; !ok {
		return store.ErrItemNotFound
	}
	delete(repo.db.data.items, id)
	return nil
}

func (repo *storeRepository) ItemInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ci := range repo.db.data.cartItems {
		if ci.ItemID == id {
			return true, nil
		}
	}
	return false, nil
}

// Carts

// withItems loads the items of the cart, oldest first.
func (repo *storeRepository) withItems(cart store.Cart) store.Cart {
	cart.Items = make([]store.CartItem, 0)
	for _, ci := range repo.db.data.cartItems {
		if ci.CartID != cart.ID {
			continue
		}
		if item, ok := repo.db.data.items[ci.ItemID]; ok {
			item.TotalCost = item.Cost()
			ci.Item = &item
		}
		cart.Items = append(cart.Items, ci)
	}
	sort.Slice(cart.Items, func(i, j int) bool {
		if !cart.Items[i].CreatedAt.Equal(cart.Items[j].CreatedAt) {
			return cart.Items[i].CreatedAt.Before(cart.Items[j].CreatedAt)
		}
		return cart.Items[i].ID < cart.Items[j].ID
	})
	cart.ComputeTotals()
	return cart
}

func (repo *storeRepository) GetOpenCart(ctx context.Context, userID string, forUpdate bool, exec ...core.DBExecutor) (store.Cart, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, cart := range repo.db.data.carts {
		if cart.UserID == userID && cart.Status.IsOpen() {
			return repo.withItems(cart), nil
		}
	}
	return store.Cart{}, store.ErrCartNotFound
}

func (repo *storeRepository) GetCart(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (store.Cart, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cart, ok := repo.db.data.carts[id]; ok {
		return repo.withItems(cart), nil
	}
	return store.Cart{}, store.ErrCartNotFound
}

func (repo *storeRepository) GetCartBySession(ctx context.Context, sessionID string, forUpdate bool, exec ...core.DBExecutor) (store.Cart, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sessionID != "" {
		for _, cart := range repo.db.data.carts {
			if cart.CheckoutSessionID == sessionID {
				return repo.withItems(cart), nil
			}
		}
	}
	return store.Cart{}, store.ErrCartNotFound
}

func (repo *storeRepository) CreateCart(ctx context.Context, cart store.Cart, exec ...core.DBExecutor) (store.Cart, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cart.ID = newID()
	cart.Items = nil
	repo.db.data.carts[cart.ID] = cart
	return repo.withItems(cart), nil
}

func (repo *storeRepository) UpdateCart(ctx context.Context, cart store.Cart, exec ...core.DBExecutor) (store.Cart, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.carts[cart.ID]; !ok {
		return store.Cart{}, store.ErrCartNotFound
	}
	cart.Items = nil
	repo.db.data.carts[cart.ID] = cart
	return repo.withItems(cart), nil
}

func (repo *storeRepository) SaveCartItem(ctx context.Context, ci store.CartItem, exec ...core.DBExecutor) (store.CartItem, error) {
	if ci.Quantity <= 0 {
		return store.CartItem{}, fmt.Errorf("cart item quantity %d violates check constraint", ci.Quantity)
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, existing := range repo.db.data.cartItems {
		if existing.CartID == ci.CartID && existing.ItemID == ci.ItemID {
			ci.ID = id
			ci.CreatedAt = existing.CreatedAt
			break
		}
	}
	if ci.ID == "" {
		ci.ID = newID()
	}
	ci.Item = nil
	ci.Subtotal = 0
	repo.db.data.cartItems[ci.ID] = ci
	return ci, nil
}

func (repo *storeRepository) DeleteCartItem(ctx context.Context, cartID, itemID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, ci := range repo.db.data.cartItems {
		if ci.CartID == cartID && ci.ItemID == itemID {
			delete(repo.db.data.cartItems, id)
			return nil
		}
	}
	return store.ErrCartItemNotFound
}

func (repo *storeRepository) ClearCart(ctx context.Context, cartID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, ci := range repo.db.data.cartItems {
		if ci.CartID == cartID {
			delete(repo.db.data.cartItems, id)
		}
	}
	return nil
}

// Orders

func (repo *storeRepository) CreateOrder(ctx context.Context, o store.Order, exec ...core.DBExecutor) (store.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	o.ID = newID()
	o.Items = nil
	repo.db.data.orders[o.ID] = o
	return o, nil
}

func (repo *storeRepository) QueryOrders(ctx context.Context, filter store.OrderFilter, exec ...core.DBExecutor) ([]store.Order, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	orders := make([]store.Order, 0)
	for _, o := range repo.db.data.orders {
		if (filter.UserID != "" && o.UserID != filter.UserID) || (filter.Status != "" && o.Status != filter.Status) {
			continue
		}
		if cart, ok := repo.db.data.carts[o.CartID]; ok {
			o.Items = repo.withItems(cart).Items
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })

	start, end := page(filter.Pagination, len(orders))
	return orders[start:end], len(orders), nil
}
