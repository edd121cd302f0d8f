package store

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/user"
)

var (
	// not found errors
	ErrItemNotFound     = errors.New("item not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("item not in cart")
	ErrOrderNotFound    = errors.New("order not found")

	// business errors, returned wrapped in a *core.ValidationError
	ErrInvalidPrice    = errors.New("price must be greater than 0")
	ErrItemUnavailable = errors.New("item is not available")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrEmailRequired   = errors.New("an email address is required to checkout")
	ErrInvalidEvent    = errors.New("invalid payment event")

	// ErrPaymentUnavailable is returned when no payment gateway is configured.
	ErrPaymentUnavailable = errors.New("payment processing is unavailable")
)

type (
	Repository interface {
		QueryItems(ctx context.Context, filter ItemFilter, exec ...core.DBExecutor) ([]Item, error)
		GetItem(ctx context.Context, id string, exec ...core.DBExecutor) (Item, error)
		CreateItem(ctx context.Context, item Item, exec ...core.DBExecutor) (Item, error)
		UpdateItem(ctx context.Context, item Item, exec ...core.DBExecutor) (Item, error)
		DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error
		// ItemInUse reports whether the item is in any cart.
		ItemInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)

		// GetOpenCart returns the active or pending payment cart of the user, with its items.
		GetOpenCart(ctx context.Context, userID string, forUpdate bool, exec ...core.DBExecutor) (Cart, error)
		// GetCart returns the cart with its items.
		GetCart(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (Cart, error)
		GetCartBySession(ctx context.Context, sessionID string, forUpdate bool, exec ...core.DBExecutor) (Cart, error)
		CreateCart(ctx context.Context, cart Cart, exec ...core.DBExecutor) (Cart, error)
		UpdateCart(ctx context.Context, cart Cart, exec ...core.DBExecutor) (Cart, error)
		// SaveCartItem inserts or updates on (cart, item).
		SaveCartItem(ctx context.Context, ci CartItem, exec ...core.DBExecutor) (CartItem, error)
		DeleteCartItem(ctx context.Context, cartID, itemID string, exec ...core.DBExecutor) error
		ClearCart(ctx context.Context, cartID string, exec ...core.DBExecutor) error

		CreateOrder(ctx context.Context, o Order, exec ...core.DBExecutor) (Order, error)
		// QueryOrders returns a page of orders, newest first, & the total count.
		QueryOrders(ctx context.Context, filter OrderFilter, exec ...core.DBExecutor) ([]Order, int, error)
	}

	// PaymentGateway creates hosted checkout sessions & verifies the provider's webhooks.
	PaymentGateway interface {
		CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
		// ParseEvent verifies the payload signature. Unverifiable payloads return ErrInvalidEvent.
		ParseEvent(payload []byte, signature string) (PaymentEvent, error)
	}

	Service interface {
		QueryItems(ctx context.Context, filter ItemFilter) ([]Item, error)
		GetItem(ctx context.Context, id string) (Item, error)
		CreateItem(ctx context.Context, ni NewItem) (Item, error)
		UpdateItem(ctx context.Context, id string, ui UpdateItem) (Item, error)
		// DeleteItem deactivates the item instead when it is in a cart.
		DeleteItem(ctx context.Context, id string) error

		GetCart(ctx context.Context, userID string) (Cart, error)
		AddItem(ctx context.Context, userID string, data AddCartItem) (Cart, error)
		UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (Cart, error)
		RemoveItem(ctx context.Context, userID, itemID string) (Cart, error)
		ClearCart(ctx context.Context, userID string) (Cart, error)
		Checkout(ctx context.Context, userID string) (CheckoutResult, error)
		HandlePaymentEvent(ctx context.Context, payload []byte, signature string) error

		QueryOrders(ctx context.Context, filter OrderFilter) (OrderPage, error)
	}

	// UserStore finds the buyers & grants them the client role.
	UserStore interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Update(ctx context.Context, id string, uu user.UpdateUser) (user.User, error)
	}

	service struct {
		repo    Repository
		db      core.Transactor
		users   UserStore
		gateway PaymentGateway
		mailSvc core.EmailService
		metrics core.Metrics
		logger  core.Logger
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

var NowFunc = time.Now // mockable

// NewService returns the store service. gateway may be nil, checkouts then fail with ErrPaymentUnavailable.
func NewService(
	repo Repository,
	db core.Transactor,
	users UserStore,
	gateway PaymentGateway,
	mailSvc core.EmailService,
	metrics core.Metrics,
	logger core.Logger,
	conf *core.Config,
) Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &service{
		repo:    repo,
		db:      db,
		users:   users,
		gateway: gateway,
		mailSvc: mailSvc,
		metrics: metrics,
		logger:  logger,
		conf:    conf,
	}
}

// Storefront

func (svc *service) QueryItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	items, err := svc.repo.QueryItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].TotalCost = items[i].Cost()
	}
	return items, nil
}

func (svc *service) GetItem(ctx context.Context, id string) (Item, error) {
	item, err := svc.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	item.TotalCost = item.Cost()
	return item, nil
}

func (svc *service) CreateItem(ctx context.Context, ni NewItem) (Item, error) {
	now := NowFunc().UTC()
	item := Item{
		Name:            ni.Name,
		Description:     ni.Description,
		ImageURL:        ni.ImageURL,
		ItemType:        ni.ItemType,
		Sessions:        ni.Sessions,
		PricePerSession: ni.PricePerSession,
		Price:           ni.Price,
		DisplayOrder:    ni.DisplayOrder,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ni.IsActive != nil {
		item.IsActive = *ni.IsActive
	}
	item, err := svc.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	item.TotalCost = item.Cost()
	return item, nil
}

func (svc *service) UpdateItem(ctx context.Context, id string, ui UpdateItem) (Item, error) {
	item, err := svc.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if ui.Name != nil {
		item.Name = core.CleanString(*ui.Name)
	}
	if ui.Description != nil {
		item.Description = core.CleanString(*ui.Description)
	}
	if ui.ImageURL != nil {
		item.ImageURL = core.CleanString(*ui.ImageURL)
	}
	if ui.ItemType != nil {
		item.ItemType = *ui.ItemType
	}
	if ui.Sessions != nil {
		item.Sessions = *ui.Sessions
	}
	if ui.PricePerSession != nil {
		item.PricePerSession = *ui.PricePerSession
	}
	if ui.Price != nil {
		item.Price = *ui.Price
	}
	if ui.DisplayOrder != nil {
		item.DisplayOrder = *ui.DisplayOrder
	}
	if ui.IsActive != nil {
		item.IsActive = *ui.IsActive
	}
	if err = validateCost(item); err != nil {
		return Item{}, err
	}

	item.UpdatedAt = NowFunc().UTC()
	if item, err = svc.repo.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	item.TotalCost = item.Cost()
	return item, nil
}

func (svc *service) DeleteItem(ctx context.Context, id string) error {
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		item, err := svc.repo.GetItem(ctx, id, exec)
		if err != nil {
			return err
		}
		inUse, err := svc.repo.ItemInUse(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "checking item usage")
		}
		if !inUse {
			return svc.repo.DeleteItem(ctx, id, exec)
		}
		item.IsActive = false
		item.UpdatedAt = NowFunc().UTC()
		_, err = svc.repo.UpdateItem(ctx, item, exec)
		return err
	})
}

// Cart

// openCart returns the open cart of the user, creating an active one if none.
func (svc *service) openCart(ctx context.Context, exec core.DBExecutor, userID string) (Cart, error) {
	cart, err := svc.repo.GetOpenCart(ctx, userID, true, exec)
	if err == nil {
		return cart, nil
	}
	if errors.Cause(err) != ErrCartNotFound {
		return Cart{}, errors.Wrap(err, "loading cart")
	}

	now := NowFunc().UTC()
	cart, err = svc.repo.CreateCart(ctx, Cart{UserID: userID, Status: CartActive, CreatedAt: now, UpdatedAt: now}, exec)
	if err != nil {
		return Cart{}, errors.Wrap(err, "creating cart")
	}
	cart.ComputeTotals()
	return cart, nil
}

// reopenCart cancels a cart pending payment & returns a new active cart holding copies of its items.
// The items of a cart pending payment never change, so a late payment of its session still matches it.
func (svc *service) reopenCart(ctx context.Context, exec core.DBExecutor, pending Cart) (Cart, error) {
	now := NowFunc().UTC()
	pending.Status = CartCancelled
	pending.UpdatedAt = now
	if _, err := svc.repo.UpdateCart(ctx, pending, exec); err != nil {
		return Cart{}, errors.Wrap(err, "cancelling cart")
	}

	cart, err := svc.repo.CreateCart(ctx, Cart{UserID: pending.UserID, Status: CartActive, CreatedAt: now, UpdatedAt: now}, exec)
	if err != nil {
		return Cart{}, errors.Wrap(err, "creating cart")
	}
	for _, ci := range pending.Items {
		item := ci.Item
		ci.ID = ""
		ci.CartID = cart.ID
		ci.UpdatedAt = now
		if ci, err = svc.repo.SaveCartItem(ctx, ci, exec); err != nil {
			return Cart{}, errors.Wrap(err, "copying cart item")
		}
		ci.Item = item
		cart.Items = append(cart.Items, ci)
	}
	return cart, nil
}

// mutateCart runs fn on the open cart of the user & returns the refreshed cart.
// A cart pending payment is cancelled & replaced by an active copy before being modified.
func (svc *service) mutateCart(ctx context.Context, userID string, fn func(exec core.DBExecutor, cart Cart) error) (Cart, error) {
	var cart Cart
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if cart, err = svc.openCart(ctx, exec, userID); err != nil {
			return err
		}
		if cart.Status == CartPendingPayment {
			if cart, err = svc.reopenCart(ctx, exec, cart); err != nil {
				return err
			}
		}
		if err = fn(exec, cart); err != nil {
			return err
		}
		cart.UpdatedAt = NowFunc().UTC()
		if _, err = svc.repo.UpdateCart(ctx, cart, exec); err != nil {
			return errors.Wrap(err, "updating cart")
		}
		if cart, err = svc.repo.GetCart(ctx, cart.ID, false, exec); err != nil {
			return errors.Wrap(err, "loading cart")
		}
		cart.ComputeTotals()
		return nil
	})
	return cart, err
}

func (svc *service) GetCart(ctx context.Context, userID string) (Cart, error) {
	var cart Cart
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		cart, err = svc.openCart(ctx, exec, userID)
		return err
	})
	cart.ComputeTotals()
	return cart, err
}

func (svc *service) AddItem(ctx context.Context, userID string, data AddCartItem) (Cart, error) {
	if data.Quantity == 0 {
		data.Quantity = MinQuantity
	}
	if err := checkQuantity(data.Quantity); err != nil {
		return Cart{}, err
	}
	return svc.mutateCart(ctx, userID, func(exec core.DBExecutor, cart Cart) error {
		item, err := svc.repo.GetItem(ctx, data.ItemID, exec)
		if err != nil {
			if errors.Cause(err) == ErrItemNotFound {
				return core.NewFieldError("storefront_item_id", ErrItemNotFound)
			}
			return err
		}
		if !item.IsActive {
			return core.NewFieldError("storefront_item_id", ErrItemUnavailable)
		}

		now := NowFunc().UTC()
		ci := CartItem{CartID: cart.ID, ItemID: item.ID, Price: item.Cost(), CreatedAt: now}
		for _, existing := range cart.Items {
			if existing.ItemID == item.ID {
				ci = existing
				break
			}
		}
		ci.Quantity += data.Quantity
		if ci.Quantity > MaxQuantity {
			ci.Quantity = MaxQuantity
		}
		ci.UpdatedAt = now
		_, err = svc.repo.SaveCartItem(ctx, ci, exec)
		return err
	})
}

func checkQuantity(quantity int) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return core.NewFieldError("quantity", ErrInvalidQuantity)
	}
	return nil
}

func (svc *service) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (Cart, error) {
	if err := checkQuantity(quantity); err != nil {
		return Cart{}, err
	}
	return svc.mutateCart(ctx, userID, func(exec core.DBExecutor, cart Cart) error {
		for _, ci := range cart.Items {
			if ci.ItemID == itemID || ci.ID == itemID {
				ci.Quantity = quantity
				ci.UpdatedAt = NowFunc().UTC()
				_, err := svc.repo.SaveCartItem(ctx, ci, exec)
				return err
			}
		}
		return ErrCartItemNotFound
	})
}

func (svc *service) RemoveItem(ctx context.Context, userID, itemID string) (Cart, error) {
	return svc.mutateCart(ctx, userID, func(exec core.DBExecutor, cart Cart) error {
		for _, ci := range cart.Items {
			if ci.ItemID == itemID || ci.ID == itemID {
				return svc.repo.DeleteCartItem(ctx, cart.ID, ci.ItemID, exec)
			}
		}
		return ErrCartItemNotFound
	})
}

func (svc *service) ClearCart(ctx context.Context, userID string) (Cart, error) {
	return svc.mutateCart(ctx, userID, func(exec core.DBExecutor, cart Cart) error {
		return svc.repo.ClearCart(ctx, cart.ID, exec)
	})
}

// Checkout

func (svc *service) Checkout(ctx context.Context, userID string) (CheckoutResult, error) {
	if svc.gateway == nil {
		return CheckoutResult{}, ErrPaymentUnavailable
	}
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if usr.Email == "" {
		return CheckoutResult{}, core.NewValidationError(ErrEmailRequired)
	}

	var res CheckoutResult
	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		cart, err := svc.openCart(ctx, exec, userID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return core.NewValidationError(ErrEmptyCart)
		}

		req := CheckoutRequest{
			CartID:        cart.ID,
			UserID:        userID,
			CustomerEmail: usr.Email,
			SuccessURL:    svc.frontendURL("/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     svc.frontendURL("/checkout/cancel"),
		}
		for _, ci := range cart.Items {
			line := CheckoutLine{Name: ci.name(), Quantity: ci.Quantity, UnitAmount: ci.Price}
			if ci.Item != nil {
				line.Description = ci.Item.Description
			}
			req.Lines = append(req.Lines, line)
		}
		session, err := svc.gateway.CreateCheckoutSession(ctx, req)
		if err != nil {
			return errors.Wrap(err, "creating checkout session")
		}

		cart.Status = CartPendingPayment
		cart.CheckoutSessionID = session.ID
		cart.UpdatedAt = NowFunc().UTC()
		if cart, err = svc.repo.UpdateCart(ctx, cart, exec); err != nil {
			return errors.Wrap(err, "updating cart")
		}
		cart.ComputeTotals()
		res = CheckoutResult{SessionID: session.ID, CheckoutURL: session.URL, Cart: cart}
		return nil
	})
	return res, err
}

func (svc *service) frontendURL(path string) string {
	return strings.TrimRight(svc.conf.FrontendBaseURL, "/") + path
}

func (svc *service) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) error {
	if svc.gateway == nil {
		return ErrPaymentUnavailable
	}
	evt, err := svc.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Cause(err) == ErrInvalidEvent {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "parsing payment event")
	}

	switch evt.Type {
	case EventCheckoutCompleted:
		return svc.completeCheckout(ctx, evt)
	case EventCheckoutExpired:
		return svc.expireCheckout(ctx, evt)
	default:
		return nil
	}
}

// eventCart finds the cart of a payment event, by cart ID first then by checkout session.
func (svc *service) eventCart(ctx context.Context, exec core.DBExecutor, evt PaymentEvent) (Cart, error) {
	if evt.CartID != "" {
		cart, err := svc.repo.GetCart(ctx, evt.CartID, true, exec)
		if err == nil || errors.Cause(err) != ErrCartNotFound {
			return cart, err
		}
	}
	return svc.repo.GetCartBySession(ctx, evt.SessionID, true, exec)
}

// unsettledReason tells why a paid checkout session cannot complete the cart, if so.
func unsettledReason(cart Cart, evt PaymentEvent) string {
	if cart.Status != CartPendingPayment {
		return fmt.Sprintf("cart is %s", cart.Status)
	}
	if evt.AmountTotal != 0 && evt.AmountTotal != cart.Total {
		return fmt.Sprintf("paid %s for a cart of %s", FormatCents(evt.AmountTotal), FormatCents(cart.Total))
	}
	return ""
}

func (svc *service) completeCheckout(ctx context.Context, evt PaymentEvent) error {
	var (
		order     Order
		completed bool
		unsettled string
	)
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		cart, err := svc.eventCart(ctx, exec, evt)
		if err != nil {
			return err
		}
		if cart.Status == CartCompleted && cart.CheckoutSessionID == evt.SessionID {
			return nil // already processed
		}
		cart.ComputeTotals()
		if unsettled = unsettledReason(cart, evt); unsettled != "" {
			return nil
		}

		now := NowFunc().UTC()
		cart.Status = CartCompleted
		cart.CheckoutSessionID = evt.SessionID
		cart.UpdatedAt = now
		if _, err = svc.repo.UpdateCart(ctx, cart, exec); err != nil {
			return errors.Wrap(err, "completing cart")
		}

		order, err = svc.repo.CreateOrder(ctx, Order{
			UserID:     cart.UserID,
			CartID:     cart.ID,
			Total:      cart.Total,
			Sessions:   cart.Sessions(),
			Status:     OrderPaid,
			PaymentRef: evt.PaymentRef,
			CreatedAt:  now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating order")
		}
		order.Items = cart.Items
		completed = true
		return nil
	})
	if unsettled != "" {
		// the payment is kept by the provider until refunded by an admin
		svc.logger.Error("unsettled payment, refund required", errors.New(unsettled), map[string]interface{}{
			"session_id":   evt.SessionID,
			"cart_id":      evt.CartID,
			"payment_ref":  evt.PaymentRef,
			"amount_total": evt.AmountTotal,
		})
		return nil
	}
	if err != nil || !completed {
		return err
	}

	svc.metrics.OrderCompleted(order.Total)
	usr, err := svc.users.GetByID(ctx, order.UserID)
	if err != nil {
		svc.logger.Error("loading buyer", err, map[string]interface{}{"order_id": order.ID})
		return nil
	}
	svc.grantClientRole(ctx, usr)
	svc.sendOrderEmails(usr, order)
	return nil
}

func (svc *service) expireCheckout(ctx context.Context, evt PaymentEvent) error {
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		cart, err := svc.eventCart(ctx, exec, evt)
		if err != nil {
			if errors.Cause(err) == ErrCartNotFound {
				return nil
			}
			return err
		}
		if cart.Status != CartPendingPayment || cart.CheckoutSessionID != evt.SessionID {
			return nil
		}
		cart.Status = CartActive
		cart.CheckoutSessionID = ""
		cart.UpdatedAt = NowFunc().UTC()
		_, err = svc.repo.UpdateCart(ctx, cart, exec)
		return err
	})
}

// grantClientRole makes a buyer a client.
func (svc *service) grantClientRole(ctx context.Context, usr user.User) {
	if usr.IsClient() || usr.IsStaff() {
		return
	}
	uu := user.UpdateUser{Name: usr.Name, Username: usr.Username, Email: usr.Email, Roles: usr.RolesWith(user.RoleClient)}
	if _, err := svc.users.Update(ctx, usr.ID, uu); err != nil {
		svc.logger.Error("granting client role", err, usr)
	}
}

type orderLine struct {
	Name     string
	Quantity int
	Total    string
}

func (svc *service) sendOrderEmails(usr user.User, order Order) {
	lines := make([]orderLine, 0, len(order.Items))
	for _, ci := range order.Items {
		lines = append(lines, orderLine{Name: ci.name(), Quantity: ci.Quantity, Total: FormatCents(ci.Subtotal)})
	}
	total := FormatCents(order.Total)

	msgs := make([]*core.EmailMessage, 0, 2)
	if usr.Email != "" {
		confirmation := &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      fmt.Sprintf("Order confirmation #%s", shortID(order.ID)),
			TemplateName: "order_confirmation",
			TemplateData: map[string]interface{}{
				"Name":     usr.Name,
				"OrderID":  shortID(order.ID),
				"Lines":    lines,
				"Total":    total,
				"Sessions": order.Sessions,
			},
		}
		if err := confirmation.Attach(bytes.NewReader(receipt(order, lines, total)), "receipt.txt", "text/plain"); err != nil {
			svc.logger.Error("attaching receipt", err)
		}
		msgs = append(msgs, confirmation)
	}
	if len(svc.conf.AdminEmails) > 0 {
		msgs = append(msgs, &core.EmailMessage{
			To:           svc.conf.AdminEmails,
			Subject:      fmt.Sprintf("New order #%s", shortID(order.ID)),
			TemplateName: "order_notification",
			TemplateData: map[string]interface{}{
				"OrderID":    shortID(order.ID),
				"Name":       usr.Name,
				"Email":      usr.Email,
				"Lines":      lines,
				"Total":      total,
				"PaymentRef": order.PaymentRef,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func receipt(order Order, lines []orderLine, total string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Order:   %s\n", order.ID)
	fmt.Fprintf(&buf, "Date:    %s\n", order.CreatedAt.Format(time.RFC1123))
	fmt.Fprintf(&buf, "Payment: %s\n\n", order.PaymentRef)
	for _, l := range lines {
		fmt.Fprintf(&buf, "%-40s x%-3d %12s\n", l.Name, l.Quantity, l.Total)
	}
	fmt.Fprintf(&buf, "\n%-45s %12s\n", "Total", total)
	return buf.Bytes()
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

// Orders

func (svc *service) QueryOrders(ctx context.Context, filter OrderFilter) (OrderPage, error) {
	filter.Clean()
	orders, total, err := svc.repo.QueryOrders(ctx, filter)
	if err != nil {
		return OrderPage{}, errors.Wrap(err, "querying orders")
	}
	return OrderPage{Orders: orders, PageInfo: core.NewPageInfo(filter.Pagination, total)}, nil
}
