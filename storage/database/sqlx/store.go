package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/store"
)

type storeRepository struct {
	base
}

var _ store.Repository = (*storeRepository)(nil) // interface compliance check

func NewStoreRepository(db *sqlx.DB) store.Repository {
	return &storeRepository{base{db: db}}
}

// Items

var itemColumns = []string{
	"id", "name", "description", "image_url", "item_type", "sessions", "price_per_session", "price", "display_order",
	"is_active", "created_at", "updated_at",
}

type itemRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Description     string         `db:"description"`
	ImageURL        string         `db:"image_url"`
	ItemType        store.ItemType `db:"item_type"`
	Sessions        int            `db:"sessions"`
	PricePerSession int64          `db:"price_per_session"`
	Price           int64          `db:"price"`
	DisplayOrder    int            `db:"display_order"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r itemRow) toItem() store.Item {
	return store.Item{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		ImageURL:        r.ImageURL,
		ItemType:        r.ItemType,
		Sessions:        r.Sessions,
		PricePerSession: r.PricePerSession,
		Price:           r.Price,
		DisplayOrder:    r.DisplayOrder,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func itemValues(item store.Item) map[string]interface{} {
	return map[string]interface{}{
		"name":              item.Name,
		"description":       item.Description,
		"image_url":         item.ImageURL,
		"item_type":         item.ItemType,
		"sessions":          item.Sessions,
		"price_per_session": item.PricePerSession,
		"price":             item.Price,
		"display_order":     item.DisplayOrder,
		"is_active":         item.IsActive,
		"updated_at":        item.UpdatedAt.UTC(),
	}
}

func (repo *storeRepository) QueryItems(ctx context.Context, filter store.ItemFilter, exec ...core.DBExecutor) ([]store.Item, error) {
	query := psql.Select(itemColumns...).From("storefront_items").OrderBy("display_order ASC", "name ASC")
	if filter.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.ItemType != "" {
		query = query.Where(sq.Eq{"item_type": filter.ItemType})
	}

	var rows []itemRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting items")
	}
	items := make([]store.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, nil
}

func (repo *storeRepository) GetItem(ctx context.Context, id string, exec ...core.DBExecutor) (store.Item, error) {
	var row itemRow
	query := psql.Select(itemColumns...).From("storefront_items").Where(sq.Eq{"id": id})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return store.Item{}, trapNoRowsErr(err, store.ErrItemNotFound)
	}
	return row.toItem(), nil
}

func (repo *storeRepository) CreateItem(ctx context.Context, item store.Item, exec ...core.DBExecutor) (store.Item, error) {
	item.ID = newID()
	item.TotalCost = 0
	values := itemValues(item)
	values["id"] = item.ID
	values["created_at"] = item.CreatedAt.UTC()
	if _, err := repo.exec(ctx, exec, psql.Insert("storefront_items").SetMap(values)); err != nil {
		return store.Item{}, errors.Wrap(err, "inserting item")
	}
	return item, nil
}

func (repo *storeRepository) UpdateItem(ctx context.Context, item store.Item, exec ...core.DBExecutor) (store.Item, error) {
	item.TotalCost = 0
	n, err := repo.exec(ctx, exec, psql.Update("storefront_items").SetMap(itemValues(item)).Where(sq.Eq{"id": item.ID}))
	if err != nil {
		return store.Item{}, errors.Wrap(err, "updating item")
	}
	if n == 0 {
		return store.Item{}, store.ErrItemNotFound
	}
	return item, nil
}

func (repo *storeRepository) DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := repo.exec(ctx, exec, psql.Delete("storefront_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting item")
	}
	if n == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (repo *storeRepository) ItemInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	var inUse bool
	query := psql.Select().Column("EXISTS (SELECT 1 FROM cart_items WHERE storefront_item_id = ?)", id)
	if err := repo.get(ctx, exec, &inUse, query); err != nil {
		return false, errors.Wrap(err, "checking item usage")
	}
	return inUse, nil
}

// Carts

var (
	cartColumns     = []string{"id", "user_id", "status", "checkout_session_id", "created_at", "updated_at"}
	cartItemColumns = []string{"id", "cart_id", "storefront_item_id", "quantity", "price", "created_at", "updated_at"}
)

type cartRow struct {
	ID                string           `db:"id"`
	UserID            string           `db:"user_id"`
	Status            store.CartStatus `db:"status"`
	CheckoutSessionID null.String      `db:"checkout_session_id"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

func (r cartRow) toCart() store.Cart {
	return store.Cart{
		ID:                r.ID,
		UserID:            r.UserID,
		Status:            r.Status,
		CheckoutSessionID: r.CheckoutSessionID.String,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type cartItemRow struct {
	ID        string    `db:"id"`
	CartID    string    `db:"cart_id"`
	ItemID    string    `db:"storefront_item_id"`
	Quantity  int       `db:"quantity"`
	Price     int64     `db:"price"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Item      itemRow   `db:"i"`
}

func (r cartItemRow) toCartItem() store.CartItem {
	item := r.Item.toItem()
	item.TotalCost = item.Cost()
	return store.CartItem{
		ID:        r.ID,
		CartID:    r.CartID,
		ItemID:    r.ItemID,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Item:      &item,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// cartItems loads the items of the carts, oldest first, by cart ID.
func (repo *storeRepository) cartItems(ctx context.Context, exec []core.DBExecutor, cartIDs ...string) (map[string][]store.CartItem, error) {
	res := make(map[string][]store.CartItem, len(cartIDs))
	if len(cartIDs) == 0 {
		return res, nil
	}

	cols := append(qualified("ci", "", cartItemColumns), qualified("i", "i", itemColumns)...)
	query := psql.Select(cols...).
		From("cart_items ci").
		Join("storefront_items i ON i.id = ci.storefront_item_id").
		Where(sq.Eq{"ci.cart_id": cartIDs}).
		OrderBy("ci.created_at ASC", "ci.id ASC")

	var rows []cartItemRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting cart items")
	}
	for _, r := range rows {
		res[r.CartID] = append(res[r.CartID], r.toCartItem())
	}
	return res, nil
}

func (repo *storeRepository) getCart(ctx context.Context, exec []core.DBExecutor, where sq.Sqlizer, forUpdate bool) (store.Cart, error) {
	query := psql.Select(cartColumns...).From("carts").Where(where).Limit(1)
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	var row cartRow
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return store.Cart{}, trapNoRowsErr(err, store.ErrCartNotFound)
	}
	return repo.withItems(ctx, exec, row.toCart())
}

func (repo *storeRepository) withItems(ctx context.Context, exec []core.DBExecutor, cart store.Cart) (store.Cart, error) {
	items, err := repo.cartItems(ctx, exec, cart.ID)
	if err != nil {
		return store.Cart{}, err
	}
	cart.Items = items[cart.ID]
	if cart.Items == nil {
		cart.Items = make([]store.CartItem, 0)
	}
	cart.ComputeTotals()
	return cart, nil
}

func (repo *storeRepository) GetOpenCart(ctx context.Context, userID string, forUpdate bool, exec ...core.DBExecutor) (store.Cart, error) {
	where := sq.Eq{"user_id": userID, "status": []store.CartStatus{store.CartActive, store.CartPendingPayment}}
	return repo.getCart(ctx, exec, where, forUpdate)
}

func (repo *storeRepository) GetCart(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (store.Cart, error) {
	return repo.getCart(ctx, exec, sq.Eq{"id": id}, forUpdate)
}

func (repo *storeRepository) GetCartBySession(ctx context.Context, sessionID string, forUpdate bool, exec ...core.DBExecutor) (store.Cart, error) {
	if sessionID == "" {
		return store.Cart{}, store.ErrCartNotFound
	}
	return repo.getCart(ctx, exec, sq.Eq{"checkout_session_id": sessionID}, forUpdate)
}

func (repo *storeRepository) CreateCart(ctx context.Context, cart store.Cart, exec ...core.DBExecutor) (store.Cart, error) {
	cart.ID = newID()
	stmt := psql.Insert("carts").
		Columns(cartColumns...).
		Values(cart.ID, cart.UserID, cart.Status, nullString(cart.CheckoutSessionID), cart.CreatedAt.UTC(), cart.UpdatedAt.UTC())
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return store.Cart{}, errors.Wrap(err, "inserting cart")
	}
	cart.Items = make([]store.CartItem, 0)
	cart.ComputeTotals()
	return cart, nil
}

func (repo *storeRepository) UpdateCart(ctx context.Context, cart store.Cart, exec ...core.DBExecutor) (store.Cart, error) {
	stmt := psql.Update("carts").
		SetMap(map[string]interface{}{
			"status":              cart.Status,
			"checkout_session_id": nullString(cart.CheckoutSessionID),
			"updated_at":          cart.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": cart.ID})
	n, err := repo.exec(ctx, exec, stmt)
	if err != nil {
		return store.Cart{}, errors.Wrap(err, "updating cart")
	}
	if n == 0 {
		return store.Cart{}, store.ErrCartNotFound
	}
	return repo.withItems(ctx, exec, cart)
}

func (repo *storeRepository) SaveCartItem(ctx context.Context, ci store.CartItem, exec ...core.DBExecutor) (store.CartItem, error) {
	if ci.ID == "" {
		ci.ID = newID()
	}
	var saved struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	stmt := psql.Insert("cart_items").
		Columns(cartItemColumns...).
		Values(ci.ID, ci.CartID, ci.ItemID, ci.Quantity, ci.Price, ci.CreatedAt.UTC(), ci.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (cart_id, storefront_item_id) DO UPDATE SET " +
			"quantity = EXCLUDED.quantity, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at " +
			"RETURNING id, created_at")
	if err := repo.get(ctx, exec, &saved, stmt); err != nil {
		return store.CartItem{}, errors.Wrap(err, "saving cart item")
	}
	ci.ID = saved.ID
	ci.CreatedAt = saved.CreatedAt.UTC()
	ci.Item = nil
	ci.Subtotal = 0
	return ci, nil
}

func (repo *storeRepository) DeleteCartItem(ctx context.Context, cartID, itemID string, exec ...core.DBExecutor) error {
	n, err := repo.exec(ctx, exec, psql.Delete("cart_items").Where(sq.Eq{"cart_id": cartID, "storefront_item_id": itemID}))
	if err != nil {
		return errors.Wrap(err, "deleting cart item")
	}
	if n == 0 {
		return store.ErrCartItemNotFound
	}
	return nil
}

func (repo *storeRepository) ClearCart(ctx context.Context, cartID string, exec ...core.DBExecutor) error {
	if _, err := repo.exec(ctx, exec, psql.Delete("cart_items").Where(sq.Eq{"cart_id": cartID})); err != nil {
		return errors.Wrap(err, "clearing cart")
	}
	return nil
}

// Orders

var orderColumns = []string{"id", "user_id", "cart_id", "total", "sessions", "status", "payment_ref", "created_at"}

type orderRow struct {
	ID         string            `db:"id"`
	UserID     string            `db:"user_id"`
	CartID     string            `db:"cart_id"`
	Total      int64             `db:"total"`
	Sessions   int               `db:"sessions"`
	Status     store.OrderStatus `db:"status"`
	PaymentRef string            `db:"payment_ref"`
	CreatedAt  time.Time         `db:"created_at"`
}

func (r orderRow) toOrder() store.Order {
	return store.Order{
		ID:         r.ID,
		UserID:     r.UserID,
		CartID:     r.CartID,
		Total:      r.Total,
		Sessions:   r.Sessions,
		Status:     r.Status,
		PaymentRef: r.PaymentRef,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (repo *storeRepository) CreateOrder(ctx context.Context, o store.Order, exec ...core.DBExecutor) (store.Order, error) {
	o.ID = newID()
	o.Items = nil
	stmt := psql.Insert("orders").
		Columns(orderColumns...).
		Values(o.ID, o.UserID, o.CartID, o.Total, o.Sessions, o.Status, o.PaymentRef, o.CreatedAt.UTC())
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return store.Order{}, errors.Wrap(err, "inserting order")
	}
	return o, nil
}

func (repo *storeRepository) QueryOrders(ctx context.Context, filter store.OrderFilter, exec ...core.DBExecutor) ([]store.Order, int, error) {
	where := sq.Eq{}
	if filter.UserID != "" {
		where["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}

	var total int
	if err := repo.get(ctx, exec, &total, psql.Select("COUNT(*)").From("orders").Where(where)); err != nil {
		return nil, 0, errors.Wrap(err, "counting orders")
	}

	var rows []orderRow
	query := psql.Select(orderColumns...).From("orders").Where(where).OrderBy("created_at DESC", "id DESC")
	if err := repo.selectRows(ctx, exec, &rows, paginate(query, filter.Pagination)); err != nil {
		return nil, 0, errors.Wrap(err, "selecting orders")
	}

	cartIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		cartIDs = append(cartIDs, r.CartID)
	}
	items, err := repo.cartItems(ctx, exec, cartIDs...)
	if err != nil {
		return nil, 0, err
	}

	orders := make([]store.Order, 0, len(rows))
	for _, r := range rows {
		o := r.toOrder()
		o.Items = items[o.CartID]
		orders = append(orders, o)
	}
	return orders, total, nil
}
