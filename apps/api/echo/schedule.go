package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/schedule"
	"github.com/trezcool/clubhouse/core/user"
)

type scheduleApi struct {
	svc        *schedule.Service
	programSvc *program.Service
	auth       *authenticator
	validate   *validator.Validate
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := scheduleApi{svc: deps.ScheduleSvc, programSvc: deps.ProgramSvc, auth: auth, validate: deps.Validate}

	ag := g.Group("", jwt)
	ag.GET("/calendar", api.calendar, roleMiddleware(user.RoleParent))
	ag.GET("/teams/:id/sessions", api.teamSessions)

	sg := ag.Group("/sessions")
	sg.POST("", api.create, roleMiddleware(user.RoleAdmin, user.RoleCoach))
	sg.GET("/:id/occurrences", api.occurrences)
	sg.POST("/:id/cancel", api.cancel, roleMiddleware(user.RoleAdmin, user.RoleCoach))
}

// checkTeamManager lets admins through and coaches only on their own team.
func (api *scheduleApi) checkTeamManager(ctx echo.Context, teamID string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	team, err := api.programSvc.GetTeam(ctx.Request().Context(), teamID)
	if err != nil {
		if err == program.ErrTeamNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "team_id", Error: err.Error()})
		}
		return errors.Wrap(err, "getting team")
	}
	if claims.HasRole(user.RoleAdmin) || team.CoachID == claims.Subject {
		return nil
	}
	return errHttpForbidden
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.checkTeamManager(ctx, data.TeamID); err != nil {
		return err
	}

	s, err := api.svc.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *scheduleApi) teamSessions(ctx echo.Context) error {
	sessions, err := api.svc.QueryTeamSessions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *scheduleApi) occurrences(ctx echo.Context) error {
	month, err := bindMonth(ctx)
	if err != nil {
		return err
	}
	occs, err := api.svc.Occurrences(ctx.Request().Context(), ctx.Param("id"), month)
	if err != nil {
		return errors.Wrap(err, "expanding session")
	}
	return ctx.JSON(http.StatusOK, occs)
}

type cancelResponse struct {
	Session       schedule.Session  `json:"session"`
	Notifications core.BatchSummary `json:"notifications"`
}

func (api *scheduleApi) cancel(ctx echo.Context) error {
	s, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	if err = api.checkTeamManager(ctx, s.TeamID); err != nil {
		return err
	}

	s, summary, err := api.svc.CancelSession(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "cancelling session")
	}
	return ctx.JSON(http.StatusOK, cancelResponse{Session: s, Notifications: summary})
}

// calendar returns the sessions of every team the parent's children are actively enrolled on.
func (api *scheduleApi) calendar(ctx echo.Context) error {
	month, err := bindMonth(ctx)
	if err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	occs, err := api.svc.ParentCalendar(ctx.Request().Context(), usr.ID, month)
	if err != nil {
		return errors.Wrap(err, "building calendar")
	}
	return ctx.JSON(http.StatusOK, occs)
}
