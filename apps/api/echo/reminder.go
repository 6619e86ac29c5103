package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/reminder"
)

type reminderApi struct {
	svc *reminder.Service
}

func registerReminderAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := reminderApi{svc: deps.ReminderSvc}

	rg := g.Group("/reminders", jwt, adminMiddleware())
	rg.GET("/pending", api.pending)
	rg.POST("/dispatch", api.dispatch)
}

func bindReminderType(ctx echo.Context) (reminder.Type, error) {
	t, err := reminder.ParseType(ctx.QueryParam("type"))
	if err != nil {
		return "", core.NewValidationError(err, core.FieldError{Field: "type", Error: "must be one of 30d, 7d, 1d"})
	}
	return t, nil
}

func (api *reminderApi) pending(ctx echo.Context) error {
	t, err := bindReminderType(ctx)
	if err != nil {
		return err
	}
	pending, err := api.svc.Pending(ctx.Request().Context(), t)
	if err != nil {
		return errors.Wrap(err, "listing pending reminders")
	}
	return ctx.JSON(http.StatusOK, pending)
}

func (api *reminderApi) dispatch(ctx echo.Context) error {
	t, err := bindReminderType(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.Dispatch(ctx.Request().Context(), t)
	if err != nil {
		return errors.Wrap(err, "dispatching reminders")
	}
	return ctx.JSON(http.StatusOK, summary)
}
