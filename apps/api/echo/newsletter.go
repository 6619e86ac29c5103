package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core/newsletter"
)

type newsletterApi struct {
	svc *newsletter.Service
}

func registerNewsletterAPI(g *echo.Group, deps *Deps) {
	api := newsletterApi{svc: deps.NewsletterSvc}

	ng := g.Group("/newsletter")
	ng.POST("/subscribe", api.subscribe)
	ng.GET("/unsubscribe", api.unsubscribe)
}

type SuccessResponse struct {
	Success string `json:"success"`
}

// subscribe is public; attempts are rate limited per client IP.
func (api *newsletterApi) subscribe(ctx echo.Context) error {
	var data newsletter.NewSubscription
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubscription")
	}

	sub, created, err := api.svc.Subscribe(ctx.Request().Context(), ctx.RealIP(), data)
	if err != nil {
		return errors.Wrap(err, "subscribing")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, sub)
}

func (api *newsletterApi) unsubscribe(ctx echo.Context) error {
	if err := api.svc.Unsubscribe(ctx.Request().Context(), ctx.QueryParam("token")); err != nil {
		return errors.Wrap(err, "unsubscribing")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "You have been unsubscribed from the newsletter."})
}
