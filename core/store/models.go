package store

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/swanstudios/studio/core"
)

type ItemType string

const (
	ItemFixedPackage   ItemType = "fixed_package"
	ItemMonthlyPackage ItemType = "monthly_package"
	ItemProduct        ItemType = "product"
)

var ItemTypes = []ItemType{ItemFixedPackage, ItemMonthlyPackage, ItemProduct}

type CartStatus string

const (
	CartActive         CartStatus = "active"
	CartPendingPayment CartStatus = "pending_payment"
	CartCompleted      CartStatus = "completed"
	CartCancelled      CartStatus = "cancelled" // modified while pending payment
)

// IsOpen reports whether the cart is still the current cart of its user.
func (s CartStatus) IsOpen() bool {
	return s == CartActive || s == CartPendingPayment
}

type OrderStatus string

const (
	OrderPaid     OrderStatus = "paid"
	OrderRefunded OrderStatus = "refunded"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

// FormatCents renders an amount of cents as dollars, e.g: $1,250.00
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	dollars := fmt.Sprintf("%d", cents/100)
	for i := len(dollars) - 3; i > 0; i -= 3 {
		dollars = dollars[:i] + "," + dollars[i:]
	}
	return fmt.Sprintf("%s$%s.%02d", sign, dollars, cents%100)
}

// Item is a package or product sold on the storefront. Amounts are in cents.
type Item struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ImageURL        string    `json:"image_url"`
	ItemType        ItemType  `json:"item_type"`
	Sessions        int       `json:"sessions"`
	PricePerSession int64     `json:"price_per_session"`
	Price           int64     `json:"price"`
	TotalCost       int64     `json:"total_cost"`
	DisplayOrder    int       `json:"display_order"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Cost computes the price of one unit of the item.
func (i Item) Cost() int64 {
	if i.Sessions > 0 {
		return int64(i.Sessions) * i.PricePerSession
	}
	return i.Price
}

type NewItem struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=2000"`
	ImageURL        string   `json:"image_url" validate:"omitempty,url"`
	ItemType        ItemType `json:"item_type" validate:"required,itemtype"`
	Sessions        int      `json:"sessions" validate:"gte=0,lte=1000"`
	PricePerSession int64    `json:"price_per_session" validate:"gte=0"`
	Price           int64    `json:"price" validate:"gte=0"`
	DisplayOrder    int      `json:"display_order"`
	IsActive        *bool    `json:"is_active"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Description = core.CleanString(ni.Description)
	ni.ImageURL = core.CleanString(ni.ImageURL)
	if err := validate.Struct(ni); err != nil {
		return err
	}
	item := Item{Sessions: ni.Sessions, PricePerSession: ni.PricePerSession, Price: ni.Price}
	return validateCost(item)
}

type UpdateItem struct {
	Name            *string   `json:"name" validate:"omitempty,notblank,max=200"`
	Description     *string   `json:"description" validate:"omitempty,max=2000"`
	ImageURL        *string   `json:"image_url" validate:"omitempty,url"`
	ItemType        *ItemType `json:"item_type" validate:"omitempty,itemtype"`
	Sessions        *int      `json:"sessions" validate:"omitempty,gte=0,lte=1000"`
	PricePerSession *int64    `json:"price_per_session" validate:"omitempty,gte=0"`
	Price           *int64    `json:"price" validate:"omitempty,gte=0"`
	DisplayOrder    *int      `json:"display_order"`
	IsActive        *bool     `json:"is_active"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate) error {
	return validate.Struct(ui)
}

func validateCost(item Item) error {
	if item.Cost() <= 0 {
		field := "price"
		if item.Sessions > 0 {
			field = "price_per_session"
		}
		return core.NewFieldError(field, ErrInvalidPrice)
	}
	return nil
}

type ItemFilter struct {
	IsActive *bool    `query:"is_active"`
	ItemType ItemType `query:"item_type"`
}

type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ItemID    string    `json:"storefront_item_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"` // unit price when added
	Subtotal  int64     `json:"subtotal"`
	Item      *Item     `json:"storefront_item,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ci CartItem) name() string {
	if ci.Item != nil {
		return ci.Item.Name
	}
	return ci.ItemID
}

func (ci CartItem) sessions() int {
	if ci.Item != nil {
		return ci.Item.Sessions * ci.Quantity
	}
	return 0
}

type Cart struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Status            CartStatus `json:"status"`
	CheckoutSessionID string     `json:"checkout_session_id"`
	Items             []CartItem `json:"items"`
	Total             int64      `json:"total"`
	ItemCount         int        `json:"item_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ComputeTotals derives the subtotals, total & item count of the cart from its items.
func (c *Cart) ComputeTotals() {
	c.Total, c.ItemCount = 0, 0
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	for i := range c.Items {
		c.Items[i].Subtotal = c.Items[i].Price * int64(c.Items[i].Quantity)
		c.Total += c.Items[i].Subtotal
		c.ItemCount += c.Items[i].Quantity
	}
}

// Sessions returns the number of training sessions bought with the cart.
func (c Cart) Sessions() int {
	var n int
	for _, ci := range c.Items {
		n += ci.sessions()
	}
	return n
}

type AddCartItem struct {
	ItemID   string `json:"storefront_item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1,lte=99"`
}

func (ac *AddCartItem) Validate(validate *validator.Validate) error {
	ac.ItemID = core.CleanString(ac.ItemID)
	if ac.Quantity == 0 {
		ac.Quantity = MinQuantity
	}
	return validate.Struct(ac)
}

type UpdateCartItem struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=99"`
}

func (uc *UpdateCartItem) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Cart        Cart   `json:"cart"`
}

type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	CartID     string      `json:"cart_id"`
	Total      int64       `json:"total"`
	Sessions   int         `json:"sessions"`
	Status     OrderStatus `json:"status"`
	PaymentRef string      `json:"payment_ref"`
	Items      []CartItem  `json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
}

type OrderFilter struct {
	UserID string      `query:"user_id"`
	Status OrderStatus `query:"status"`
	core.Pagination
}

type OrderPage struct {
	Orders []Order `json:"orders"`
	core.PageInfo
}

type (
	CheckoutLine struct {
		Name        string
		Description string
		Quantity    int
		UnitAmount  int64 // cents
	}

	CheckoutRequest struct {
		CartID        string
		UserID        string
		CustomerEmail string
		Lines         []CheckoutLine
		SuccessURL    string
		CancelURL     string
	}

	CheckoutSession struct {
		ID  string
		URL string
	}

	EventType string

	// PaymentEvent is a verified notification from the payment provider.
	PaymentEvent struct {
		Type        EventType
		SessionID   string
		CartID      string
		PaymentRef  string
		AmountTotal int64 // cents, 0 when unknown
	}
)

const (
	EventCheckoutCompleted EventType = "checkout_completed"
	EventCheckoutExpired   EventType = "checkout_expired"
	EventIgnored           EventType = "ignored"
)
