package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core/store"
	sqlxrepos "github.com/swanstudios/studio/storage/database/sqlx"
)

func TestStoreRepository_Cart(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewStoreRepository(db)
	usr := createUser(t, db, "ann", true)
	now := time.Now().UTC()

	item, err := repo.CreateItem(ctx, store.Item{
		Name:            "10 Sessions",
		ItemType:        store.ItemFixedPackage,
		Sessions:        10,
		PricePerSession: 15000,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	require.NoError(t, err)

	cart, err := repo.CreateCart(ctx, store.Cart{UserID: usr.ID, Status: store.CartActive, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	t.Run("one open cart per user", func(t *testing.T) {
		_, err := repo.CreateCart(ctx, store.Cart{UserID: usr.ID, Status: store.CartActive, CreatedAt: now, UpdatedAt: now})
		assert.Error(t, err)
	})

	t.Run("save cart item upserts", func(t *testing.T) {
		first, err := repo.SaveCartItem(ctx, store.CartItem{CartID: cart.ID, ItemID: item.ID, Quantity: 1, Price: item.Cost(), CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		_, err = repo.SaveCartItem(ctx, store.CartItem{CartID: cart.ID, ItemID: item.ID, Quantity: 3, Price: item.Cost(), CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)

		open, err := repo.GetOpenCart(ctx, usr.ID, false)
		require.NoError(t, err)
		assert.Equal(t, cart.ID, open.ID)
		require.Len(t, open.Items, 1)
		assert.Equal(t, first.ID, open.Items[0].ID)
		assert.Equal(t, 3, open.Items[0].Quantity)
		require.NotNil(t, open.Items[0].Item)
		assert.Equal(t, "10 Sessions", open.Items[0].Item.Name)
		assert.Equal(t, int64(450000), open.Total)
		assert.Empty(t, open.CheckoutSessionID)

		inUse, err := repo.ItemInUse(ctx, item.ID)
		require.NoError(t, err)
		assert.True(t, inUse)
	})

	t.Run("quantity must be positive", func(t *testing.T) {
		for _, q := range []int{0, -2} {
			_, err := repo.SaveCartItem(ctx, store.CartItem{CartID: cart.ID, ItemID: item.ID, Quantity: q, Price: item.Cost(), CreatedAt: now, UpdatedAt: now})
			assert.Error(t, err, "quantity %d", q)
		}
	})

	t.Run("checkout session", func(t *testing.T) {
		cart.Status = store.CartPendingPayment
		cart.CheckoutSessionID = "cs_test_1"
		_, err := repo.UpdateCart(ctx, cart)
		require.NoError(t, err)

		bySession, err := repo.GetCartBySession(ctx, "cs_test_1", false)
		require.NoError(t, err)
		assert.Equal(t, cart.ID, bySession.ID)
		assert.Equal(t, store.CartPendingPayment, bySession.Status)

		_, err = repo.GetCartBySession(ctx, "", false)
		assert.ErrorIs(t, err, store.ErrCartNotFound)
	})

	t.Run("cancelled carts are not open", func(t *testing.T) {
		cart.Status = store.CartCancelled
		_, err := repo.UpdateCart(ctx, cart)
		require.NoError(t, err)

		_, err = repo.GetOpenCart(ctx, usr.ID, false)
		assert.ErrorIs(t, err, store.ErrCartNotFound)

		reopened, err := repo.CreateCart(ctx, store.Cart{UserID: usr.ID, Status: store.CartActive, CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		assert.NotEqual(t, cart.ID, reopened.ID)

		old, err := repo.GetCart(ctx, cart.ID, false)
		require.NoError(t, err)
		assert.Equal(t, store.CartCancelled, old.Status)
		assert.Len(t, old.Items, 1)
	})
}

func TestStoreRepository_QueryOrders(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewStoreRepository(db)
	ann := createUser(t, db, "ann", true)
	bob := createUser(t, db, "bob", true)
	now := time.Now().UTC()

	item, err := repo.CreateItem(ctx, store.Item{
		Name:      "Protein",
		ItemType:  store.ItemProduct,
		Price:     2500,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	for i, usr := range []string{ann.ID, ann.ID, bob.ID} {
		created := now.Add(time.Duration(i) * time.Minute)
		cart, err := repo.CreateCart(ctx, store.Cart{UserID: usr, Status: store.CartActive, CreatedAt: created, UpdatedAt: created})
		require.NoError(t, err)
		_, err = repo.SaveCartItem(ctx, store.CartItem{CartID: cart.ID, ItemID: item.ID, Quantity: i + 1, Price: 2500, CreatedAt: created, UpdatedAt: created})
		require.NoError(t, err)

		cart.Status = store.CartCompleted
		_, err = repo.UpdateCart(ctx, cart)
		require.NoError(t, err)
		_, err = repo.CreateOrder(ctx, store.Order{
			UserID:     usr,
			CartID:     cart.ID,
			Total:      int64(i+1) * 2500,
			Status:     store.OrderPaid,
			PaymentRef: "pi_test",
			CreatedAt:  created,
		})
		require.NoError(t, err)
	}

	orders, total, err := repo.QueryOrders(ctx, store.OrderFilter{UserID: ann.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(5000), orders[0].Total, "newest first")
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)

	_, total, err = repo.QueryOrders(ctx, store.OrderFilter{Status: store.OrderRefunded})
	require.NoError(t, err)
	assert.Zero(t, total)
}
