package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core/contact"
)

type contactApi struct {
	svc      contact.Service
	validate *validator.Validate
}

func registerContactAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc contact.Service, validate *validator.Validate) {
	api := contactApi{
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/contact")
	cg.POST("", api.submit)
	cg.GET("", api.query, jwt, adminMiddleware())
	cg.GET("/:id", api.retrieve, jwt, adminMiddleware())
	cg.PUT("/:id/viewed", api.markViewed, jwt, adminMiddleware())
}

func (api *contactApi) submit(ctx echo.Context) error {
	var data contact.NewContact
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContact")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting contact")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *contactApi) query(ctx echo.Context) error {
	var filter contact.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	page, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing contacts")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *contactApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting contact")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contactApi) markViewed(ctx echo.Context) error {
	c, err := api.svc.MarkViewed(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking contact as viewed")
	}
	return ctx.JSON(http.StatusOK, c)
}
