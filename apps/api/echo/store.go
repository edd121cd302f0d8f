package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core/store"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBytes = int64(65536)
)

type storeApi struct {
	svc      store.Service
	validate *validator.Validate
}

func registerStoreAPI(
	g *echo.Group,
	jwt, optionalJWT echo.MiddlewareFunc,
	svc store.Service,
	validate *validator.Validate,
) {
	api := storeApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/store")
	sg.POST("/webhook", api.webhook) // signed by the payment provider
	sg.GET("/items", api.queryItems, optionalJWT)
	sg.GET("/items/:id", api.retrieveItem, optionalJWT)
	sg.POST("/items", api.createItem, jwt, adminMiddleware())
	sg.PUT("/items/:id", api.updateItem, jwt, adminMiddleware())
	sg.DELETE("/items/:id", api.destroyItem, jwt, adminMiddleware())
	sg.GET("/orders", api.queryAllOrders, jwt, adminMiddleware())

	cg := g.Group("/cart", jwt)
	cg.GET("", api.getCart)
	cg.DELETE("", api.clearCart)
	cg.POST("/items", api.addItem)
	cg.PUT("/items/:itemId", api.updateItemQuantity)
	cg.DELETE("/items/:itemId", api.removeItem)
	cg.POST("/checkout", api.checkout)

	g.GET("/orders", api.queryOrders, jwt)
}

func isAdminRequest(ctx echo.Context) bool {
	claims, err := getContextClaims(ctx)
	return err == nil && claims.IsAdmin
}

// Storefront

func (api *storeApi) queryItems(ctx echo.Context) error {
	var filter store.ItemFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ItemFilter")
	}
	// only admins may browse inactive items
	if !isAdminRequest(ctx) {
		active := true
		filter.IsActive = &active
	}

	items, err := api.svc.QueryItems(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying items")
	}
	if items == nil {
		items = []store.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *storeApi) retrieveItem(ctx echo.Context) error {
	item, err := api.svc.GetItem(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting item")
	}
	if !item.IsActive && !isAdminRequest(ctx) {
		return store.ErrItemNotFound
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *storeApi) createItem(ctx echo.Context) error {
	var data store.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateItem(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *storeApi) updateItem(ctx echo.Context) error {
	var data store.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.UpdateItem(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *storeApi) destroyItem(ctx echo.Context) error {
	if err := api.svc.DeleteItem(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Cart

func (api *storeApi) getCart(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cart, err := api.svc.GetCart(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting cart")
	}
	return ctx.JSON(http.StatusOK, cart)
}

func (api *storeApi) addItem(ctx echo.Context) error {
	var data store.AddCartItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddCartItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cart, err := api.svc.AddItem(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "adding item to cart")
	}
	return ctx.JSON(http.StatusCreated, cart)
}

func (api *storeApi) updateItemQuantity(ctx echo.Context) error {
	var data store.UpdateCartItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCartItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cart, err := api.svc.UpdateItemQuantity(ctx.Request().Context(), claims.Subject, ctx.Param("itemId"), data.Quantity)
	if err != nil {
		return errors.Wrap(err, "updating cart item")
	}
	return ctx.JSON(http.StatusOK, cart)
}

func (api *storeApi) removeItem(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cart, err := api.svc.RemoveItem(ctx.Request().Context(), claims.Subject, ctx.Param("itemId"))
	if err != nil {
		return errors.Wrap(err, "removing cart item")
	}
	return ctx.JSON(http.StatusOK, cart)
}

func (api *storeApi) clearCart(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cart, err := api.svc.ClearCart(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "clearing cart")
	}
	return ctx.JSON(http.StatusOK, cart)
}

func (api *storeApi) checkout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.Checkout(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "checking out")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *storeApi) webhook(ctx echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(ctx.Response(), ctx.Request().Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "reading payload")
	}

	err = api.svc.HandlePaymentEvent(ctx.Request().Context(), payload, ctx.Request().Header.Get(signatureHeader))
	if err != nil {
		return errors.Wrap(err, "handling payment event")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"received": true})
}

// Orders

func (api *storeApi) queryOrders(ctx echo.Context) error {
	var filter store.OrderFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to OrderFilter")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	filter.UserID = claims.Subject

	page, err := api.svc.QueryOrders(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying orders")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *storeApi) queryAllOrders(ctx echo.Context) error {
	var filter store.OrderFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to OrderFilter")
	}

	page, err := api.svc.QueryOrders(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying orders")
	}
	return ctx.JSON(http.StatusOK, page)
}
