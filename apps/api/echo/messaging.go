package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core/messaging"
	"github.com/trezcool/clubhouse/core/user"
)

type messagingApi struct {
	svc  *messaging.Service
	deps *Deps
}

func registerMessagingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := messagingApi{svc: deps.MessagingSvc, deps: deps}

	mg := g.Group("/messages", jwt)
	mg.GET("", api.conversation, roleMiddleware(user.RoleCoach, user.RoleParent))
	mg.POST("", api.send, roleMiddleware(user.RoleCoach, user.RoleParent))
	mg.POST("/read", api.markAsRead, roleMiddleware(user.RoleParent))
}

// participants fills the caller's side of a conversation from the token: a parent is always the
// conversation's parent and a coach always its coach.
func participants(claims Claims, teamID, coachID, parentID string) (string, string, string, string) {
	if claims.HasRole(user.RoleParent) {
		return teamID, coachID, claims.Subject, messaging.SenderParent
	}
	return teamID, claims.Subject, parentID, messaging.SenderCoach
}

func (api *messagingApi) conversation(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	teamID, coachID, parentID, _ := participants(claims,
		ctx.QueryParam("team_id"), ctx.QueryParam("coach_id"), ctx.QueryParam("parent_id"))

	msgs, err := api.svc.Conversation(ctx.Request().Context(), teamID, coachID, parentID)
	if err != nil {
		return errors.Wrap(err, "querying conversation")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messagingApi) send(ctx echo.Context) error {
	var data messaging.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.TeamID, data.CoachID, data.ParentID, data.SenderRole = participants(claims, data.TeamID, data.CoachID, data.ParentID)
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	msg, err := api.svc.Send(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

type (
	markAsReadRequest struct {
		TeamID  string `json:"team_id" validate:"required,uuid"`
		CoachID string `json:"coach_id" validate:"required,uuid"`
	}

	markAsReadResponse struct {
		Marked int `json:"marked"`
	}
)

func (api *messagingApi) markAsRead(ctx echo.Context) error {
	var data markAsReadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to markAsReadRequest")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.MarkAsRead(ctx.Request().Context(), data.TeamID, data.CoachID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking messages as read")
	}
	return ctx.JSON(http.StatusOK, markAsReadResponse{Marked: n})
}
