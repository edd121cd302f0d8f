package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
	dummydb "github.com/swanstudios/studio/storage/database/dummy"
	"github.com/swanstudios/studio/tests"
)

type fakeGateway struct {
	err      error
	event    store.PaymentEvent
	sessions int
}

func (gw *fakeGateway) CreateCheckoutSession(ctx context.Context, req store.CheckoutRequest) (store.CheckoutSession, error) {
	if gw.err != nil {
		return store.CheckoutSession{}, gw.err
	}
	gw.sessions++
	id := fmt.Sprintf("cs_%s_%d", req.CartID, gw.sessions)
	return store.CheckoutSession{ID: id, URL: "https://pay.test/" + id}, nil
}

func (gw *fakeGateway) ParseEvent(payload []byte, signature string) (store.PaymentEvent, error) {
	if signature != "valid" {
		return store.PaymentEvent{}, store.ErrInvalidEvent
	}
	return gw.event, nil
}

type mailRecorder struct {
	mu   sync.Mutex
	msgs []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, messages...)
}

type fixture struct {
	svc     store.Service
	repo    store.Repository
	gw      *fakeGateway
	mails   *mailRecorder
	usrRepo user.Repository
	buyer   user.User
}

func setup(t *testing.T, withGateway bool) fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)

	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	mails := &mailRecorder{}
	usrSvc := user.NewServiceMock(usrRepo, mails, conf)

	f := fixture{mails: mails, usrRepo: usrRepo, repo: dummydb.NewStoreRepository(db)}
	var gw store.PaymentGateway
	if withGateway {
		f.gw = &fakeGateway{}
		gw = f.gw
	}
	f.svc = store.NewService(f.repo, db, usrSvc, gw, mails, nil, logger, conf)
	f.buyer = testutil.CreateUser(t, usrRepo, "Buyer", "buyer", "buyer@test.com", "", user.UserRoles, true)
	return f
}

func (f fixture) createItem(t *testing.T, ni store.NewItem) store.Item {
	item, err := f.svc.CreateItem(context.Background(), ni)
	require.NoError(t, err)
	return item
}

func validationCause(err error) error {
	if ve, ok := errors.Cause(err).(*core.ValidationError); ok {
		return ve.Err
	}
	return nil
}

func TestService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("no gateway", func(t *testing.T) {
		f := setup(t, false)
		_, err := f.svc.Checkout(ctx, f.buyer.ID)
		assert.Equal(t, store.ErrPaymentUnavailable, err)
		assert.Equal(t, store.ErrPaymentUnavailable, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))
	})

	t.Run("empty cart", func(t *testing.T) {
		f := setup(t, true)
		_, err := f.svc.Checkout(ctx, f.buyer.ID)
		assert.Equal(t, store.ErrEmptyCart, validationCause(err))
		assert.Zero(t, f.gw.sessions)
	})

	t.Run("gateway failure keeps the cart active", func(t *testing.T) {
		f := setup(t, true)
		item := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})
		_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: 1})
		require.NoError(t, err)

		f.gw.err = errors.New("provider down")
		_, err = f.svc.Checkout(ctx, f.buyer.ID)
		assert.Error(t, err)

		cart, err := f.svc.GetCart(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, store.CartActive, cart.Status)
		assert.Empty(t, cart.CheckoutSessionID)
		assert.Len(t, cart.Items, 1)
	})

	t.Run("completed", func(t *testing.T) {
		f := setup(t, true)
		pkg := f.createItem(t, store.NewItem{Name: "Gold Package", ItemType: store.ItemFixedPackage, Sessions: 8, PricePerSession: 8750})
		shaker := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})

		_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: pkg.ID, Quantity: 1})
		require.NoError(t, err)
		_, err = f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: shaker.ID, Quantity: 2})
		require.NoError(t, err)

		res, err := f.svc.Checkout(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, store.CartPendingPayment, res.Cart.Status)
		assert.Equal(t, res.SessionID, res.Cart.CheckoutSessionID)
		assert.Equal(t, int64(73000), res.Cart.Total)
		assert.Equal(t, "https://pay.test/"+res.SessionID, res.CheckoutURL)

		err = f.svc.HandlePaymentEvent(ctx, []byte("{}"), "forged")
		assert.Equal(t, store.ErrInvalidEvent, validationCause(err))

		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutCompleted, SessionID: res.SessionID, CartID: res.Cart.ID, PaymentRef: "pi_1"}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))
		// replays are ignored
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))

		page, err := f.svc.QueryOrders(ctx, store.OrderFilter{UserID: f.buyer.ID})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)
		order := page.Orders[0]
		assert.Equal(t, int64(73000), order.Total)
		assert.Equal(t, 8, order.Sessions)
		assert.Equal(t, store.OrderPaid, order.Status)
		assert.Equal(t, "pi_1", order.PaymentRef)

		assert.Len(t, f.mails.msgs, 2, "confirmation & admin notification")

		buyer, err := f.usrRepo.GetUser(ctx, user.GetFilter{ID: f.buyer.ID})
		require.NoError(t, err)
		assert.True(t, buyer.IsClient())

		// the next cart is a fresh one
		cart, err := f.svc.GetCart(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.NotEqual(t, res.Cart.ID, cart.ID)
		assert.Empty(t, cart.Items)
	})

	t.Run("cart edited after checkout", func(t *testing.T) {
		f := setup(t, true)
		shaker := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})
		pkg := f.createItem(t, store.NewItem{Name: "Gold Package", ItemType: store.ItemFixedPackage, Sessions: 8, PricePerSession: 8750})
		_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: shaker.ID, Quantity: 1})
		require.NoError(t, err)

		res, err := f.svc.Checkout(ctx, f.buyer.ID)
		require.NoError(t, err)
		cart, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: pkg.ID, Quantity: 1})
		require.NoError(t, err)
		assert.NotEqual(t, res.Cart.ID, cart.ID)
		assert.Equal(t, store.CartActive, cart.Status)
		assert.Equal(t, int64(71500), cart.Total)

		old, err := f.repo.GetCart(ctx, res.Cart.ID, false)
		require.NoError(t, err)
		assert.Equal(t, store.CartCancelled, old.Status)
		assert.Len(t, old.Items, 1)

		// the stale session is paid
		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutCompleted, SessionID: res.SessionID, CartID: res.Cart.ID, PaymentRef: "pi_1", AmountTotal: 1500}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))

		page, err := f.svc.QueryOrders(ctx, store.OrderFilter{UserID: f.buyer.ID})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, f.mails.msgs)

		cart, err = f.svc.GetCart(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, store.CartActive, cart.Status)
		assert.Len(t, cart.Items, 2)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		f := setup(t, true)
		item := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})
		_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: 2})
		require.NoError(t, err)
		res, err := f.svc.Checkout(ctx, f.buyer.ID)
		require.NoError(t, err)

		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutCompleted, SessionID: res.SessionID, CartID: res.Cart.ID, AmountTotal: 1500}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))

		page, err := f.svc.QueryOrders(ctx, store.OrderFilter{UserID: f.buyer.ID})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		cart, err := f.svc.GetCart(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, store.CartPendingPayment, cart.Status)
	})

	t.Run("two sessions of the same cart", func(t *testing.T) {
		f := setup(t, true)
		item := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})
		_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: 1})
		require.NoError(t, err)

		first, err := f.svc.Checkout(ctx, f.buyer.ID)
		require.NoError(t, err)
		second, err := f.svc.Checkout(ctx, f.buyer.ID)
		require.NoError(t, err)
		require.Equal(t, first.Cart.ID, second.Cart.ID)
		require.NotEqual(t, first.SessionID, second.SessionID)

		// the cart was not modified in between, either session settles it
		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutCompleted, SessionID: first.SessionID, CartID: first.Cart.ID, AmountTotal: 1500}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))
		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutCompleted, SessionID: second.SessionID, CartID: second.Cart.ID, AmountTotal: 1500}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))

		page, err := f.svc.QueryOrders(ctx, store.OrderFilter{UserID: f.buyer.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("expired", func(t *testing.T) {
		f := setup(t, true)
		item := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})
		_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID})
		require.NoError(t, err)

		res, err := f.svc.Checkout(ctx, f.buyer.ID)
		require.NoError(t, err)

		// events of another session leave the cart pending
		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutExpired, SessionID: "cs_other"}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))
		cart, err := f.svc.GetCart(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, store.CartPendingPayment, cart.Status)

		f.gw.event = store.PaymentEvent{Type: store.EventCheckoutExpired, SessionID: res.SessionID}
		require.NoError(t, f.svc.HandlePaymentEvent(ctx, []byte("{}"), "valid"))
		cart, err = f.svc.GetCart(ctx, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, store.CartActive, cart.Status)
		assert.Empty(t, cart.CheckoutSessionID)
		assert.Len(t, cart.Items, 1)
	})
}

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)

	inactive := false
	retired := f.createItem(t, store.NewItem{Name: "Retired", ItemType: store.ItemProduct, Price: 100, IsActive: &inactive})
	item := f.createItem(t, store.NewItem{Name: "Shaker", ItemType: store.ItemProduct, Price: 1500})

	_, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: retired.ID, Quantity: 1})
	assert.Equal(t, store.ErrItemUnavailable, validationCause(err))
	_, err = f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: "unknown", Quantity: 1})
	assert.Equal(t, store.ErrItemNotFound, validationCause(err))

	_, err = f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: 100})
	assert.Equal(t, store.ErrInvalidQuantity, validationCause(err))
	_, err = f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: -1})
	assert.Equal(t, store.ErrInvalidQuantity, validationCause(err))

	cart, err := f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, store.MinQuantity, cart.Items[0].Quantity)

	cart, err = f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: 89})
	require.NoError(t, err)
	cart, err = f.svc.AddItem(ctx, f.buyer.ID, store.AddCartItem{ItemID: item.ID, Quantity: 20})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, store.MaxQuantity, cart.Items[0].Quantity)

	_, err = f.svc.UpdateItemQuantity(ctx, f.buyer.ID, item.ID, 0)
	assert.Equal(t, store.ErrInvalidQuantity, validationCause(err))
	_, err = f.svc.UpdateItemQuantity(ctx, f.buyer.ID, "unknown", 2)
	assert.Equal(t, store.ErrCartItemNotFound, errors.Cause(err))
	_, err = f.svc.RemoveItem(ctx, f.buyer.ID, "unknown")
	assert.Equal(t, store.ErrCartItemNotFound, errors.Cause(err))
}
