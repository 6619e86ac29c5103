package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/messaging"
	"github.com/trezcool/clubhouse/core/user"
)

type notificationApi struct {
	svc    *messaging.Service
	logger core.Logger
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, logger core.Logger, deps *Deps) {
	api := notificationApi{svc: deps.MessagingSvc, logger: logger}

	ng := g.Group("/notifications", jwt, roleMiddleware(user.RoleParent))
	ng.GET("/unread", api.unread)
	ng.GET("/stream", api.stream)
}

type unreadResponse struct {
	messaging.Summary
	Badge int `json:"badge"`
}

func (api *notificationApi) unread(ctx echo.Context) error {
	viewing, err := bindBool(ctx, "viewing")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	summary, err := api.svc.UnreadSummary(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing unread summary")
	}
	return ctx.JSON(http.StatusOK, unreadResponse{Summary: summary, Badge: messaging.Badge(summary, viewing)})
}

// stream pushes the parent's unread summary as server-sent events until the client goes away.
func (api *notificationApi) stream(ctx echo.Context) error {
	viewing, err := bindBool(ctx, "viewing")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	var writeErr error
	err = api.svc.Watch(ctx.Request().Context(), claims.Subject, func(s messaging.Summary) {
		if writeErr != nil {
			return
		}
		data, err := json.Marshal(unreadResponse{Summary: s, Badge: messaging.Badge(s, viewing)})
		if err != nil {
			writeErr = err
			return
		}
		if _, writeErr = fmt.Fprintf(res, "event: unread\ndata: %s\n\n", data); writeErr == nil {
			res.Flush()
		}
	})
	if writeErr != nil {
		api.logger.Debug(fmt.Sprintf("notification stream of %s closed: %v", claims.Subject, writeErr))
	}
	if err != nil {
		api.logger.Error(fmt.Sprintf("notification stream of %s: %v", claims.Subject, err), err)
	}
	return nil
}
