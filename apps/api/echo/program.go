package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/user"
)

type programApi struct {
	svc      *program.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerProgramAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := programApi{svc: deps.ProgramSvc, auth: auth, validate: deps.Validate}

	ag := g.Group("", jwt)
	ag.POST("/schools", api.createSchool, adminMiddleware())
	ag.POST("/teams", api.createTeam, adminMiddleware())
	ag.GET("/teams", api.queryTeams, roleMiddleware(user.RoleAdmin, user.RoleCoach))
	ag.POST("/students", api.createStudent, roleMiddleware(user.RoleAdmin, user.RoleParent))
	ag.GET("/students", api.queryStudents, roleMiddleware(user.RoleAdmin, user.RoleParent))
	ag.POST("/enrollments", api.enroll, adminMiddleware())
	ag.PUT("/enrollments/:id/active", api.setEnrollmentActive, adminMiddleware())
}

func (api *programApi) createSchool(ctx echo.Context) error {
	var data program.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	school, err := api.svc.CreateSchool(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, school)
}

func (api *programApi) createTeam(ctx echo.Context) error {
	var data program.NewTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	team, err := api.svc.CreateTeam(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return ctx.JSON(http.StatusCreated, team)
}

// queryTeams lists every team for admins and the coached teams for coaches.
func (api *programApi) queryTeams(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var coachID string
	if !claims.HasRole(user.RoleAdmin) {
		coachID = claims.Subject
	}
	teams, err := api.svc.QueryTeams(ctx.Request().Context(), coachID)
	if err != nil {
		return errors.Wrap(err, "querying teams")
	}
	return ctx.JSON(http.StatusOK, teams)
}

// createStudent registers a student; parents can only register their own children.
func (api *programApi) createStudent(ctx echo.Context) error {
	var data program.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !claims.HasRole(user.RoleAdmin) {
		data.ParentID = claims.Subject
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	student, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *programApi) queryStudents(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	parentID := claims.Subject
	if claims.HasRole(user.RoleAdmin) && ctx.QueryParam("parent_id") != "" {
		parentID = ctx.QueryParam("parent_id")
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), parentID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *programApi) enroll(ctx echo.Context) error {
	var data program.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, e)
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (api *programApi) setEnrollmentActive(ctx echo.Context) error {
	var data setActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to setActiveRequest")
	}
	e, err := api.svc.SetEnrollmentActive(ctx.Request().Context(), ctx.Param("id"), data.IsActive)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}
