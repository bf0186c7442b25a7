package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/timetable"
)

type timetableApi struct {
	svc      timetable.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerTimetableAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc timetable.Service,
	validate *validator.Validate,
) {
	api := timetableApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	tg := g.Group("/timetable", jwt)
	tg.POST("/sessions", api.create, adminMiddleware())
	tg.GET("/sessions", api.query, staffMiddleware)
	tg.GET("/clashes", api.clashes, adminMiddleware())
	tg.GET("/free-slots", api.freeSlots, staffMiddleware)

	dg := tg.Group("/sessions/:id", staffMiddleware, api.sessionMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())

	g.GET("/me/timetable", api.myTimetable, jwt)
}

func (api *timetableApi) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return objectMiddleware(func(ctx echo.Context, id string) (interface{}, error) {
		return api.svc.Get(ctx.Request().Context(), id)
	})(next)
}

func (api *timetableApi) create(ctx echo.Context) error {
	var data timetable.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *timetableApi) query(ctx echo.Context) error {
	filter := new(timetable.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []timetable.Session{})
	}
	filter.Clean()

	sessions, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []timetable.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	sess, err := contextObject[timetable.Session](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *timetableApi) update(ctx echo.Context) error {
	sess, err := contextObject[timetable.Session](ctx)
	if err != nil {
		return err
	}

	var data timetable.UpdateSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err = data.Validate(sess, api.validate); err != nil {
		return err
	}

	sess, err = api.svc.Update(ctx.Request().Context(), sess, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	sess, err := contextObject[timetable.Session](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) clashes(ctx echo.Context) error {
	term := core.CleanString(ctx.QueryParam("term"))
	if term == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "term", Error: "this field is required"})
	}

	clashes, err := api.svc.Clashes(ctx.Request().Context(), term)
	if err != nil {
		return errors.Wrap(err, "detecting clashes")
	}
	if clashes == nil {
		clashes = []timetable.Clash{}
	}
	return ctx.JSON(http.StatusOK, clashes)
}

func (api *timetableApi) freeSlots(ctx echo.Context) error {
	var query timetable.FreeSlotQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to FreeSlotQuery")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}

	slots, err := api.svc.FreeSlots(ctx.Request().Context(), query)
	if err != nil {
		return errors.Wrap(err, "finding free slots")
	}
	if slots == nil {
		slots = []timetable.Slot{}
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *timetableApi) myTimetable(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sessions, err := api.svc.UserTimetable(ctx.Request().Context(), ctxUsr, core.CleanString(ctx.QueryParam("term")))
	if err != nil {
		return errors.Wrap(err, "querying user timetable")
	}
	if sessions == nil {
		sessions = []timetable.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}
