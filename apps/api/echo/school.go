package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core/school"
)

type schoolApi struct {
	svc      school.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc school.Service,
	validate *validator.Validate,
) {
	api := schoolApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	cg := g.Group("/classes", jwt)
	cg.POST("", api.createClass, adminMiddleware())
	cg.GET("", api.queryClasses, staffMiddleware)

	cdg := cg.Group("/:id", api.classMiddleware)
	cdg.GET("", api.retrieveClass, staffMiddleware)
	cdg.PUT("", api.updateClass, adminMiddleware())
	cdg.DELETE("", api.destroyClass, adminMiddleware())
	cdg.GET("/students", api.classList)
	cdg.POST("/enrolments", api.enrol, adminMiddleware())

	g.DELETE("/enrolments/:id", api.withdraw, jwt, adminMiddleware())

	ug := g.Group("/units", jwt)
	ug.POST("", api.createUnit, adminMiddleware())
	ug.GET("", api.queryUnits, staffMiddleware)

	udg := ug.Group("/:id", staffMiddleware, api.unitMiddleware)
	udg.GET("", api.retrieveUnit)
	udg.PUT("", api.updateUnit, adminMiddleware())
	udg.DELETE("", api.destroyUnit, adminMiddleware())

	g.GET("/trainer/units", api.trainerUnits, jwt, staffMiddleware)
}

func (api *schoolApi) classMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return objectMiddleware(func(ctx echo.Context, id string) (interface{}, error) {
		return api.svc.GetClass(ctx.Request().Context(), id)
	})(next)
}

func (api *schoolApi) unitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return objectMiddleware(func(ctx echo.Context, id string) (interface{}, error) {
		return api.svc.GetUnit(ctx.Request().Context(), id)
	})(next)
}

// Classes

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	filter := new(school.ClassFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Class{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	class, err := contextObject[school.Class](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) updateClass(ctx echo.Context) error {
	class, err := contextObject[school.Class](ctx)
	if err != nil {
		return err
	}

	var data school.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(ctx.Request().Context(), class, api.validate, api.svc); err != nil {
		return err
	}

	class, err = api.svc.UpdateClass(ctx.Request().Context(), class, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) destroyClass(ctx echo.Context) error {
	class, err := contextObject[school.Class](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteClass(ctx.Request().Context(), class.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) classList(ctx echo.Context) error {
	class, err := contextObject[school.Class](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ok, err := api.svc.CanViewClassList(ctx.Request().Context(), ctxUsr, class.ID)
	if err != nil {
		return errors.Wrap(err, "checking class list access")
	}
	if !ok {
		return errHttpForbidden
	}

	entries, err := api.svc.ClassList(ctx.Request().Context(), class.ID)
	if err != nil {
		return errors.Wrap(err, "listing class")
	}
	if entries == nil {
		entries = []school.ClassListEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

// Enrolments

func (api *schoolApi) enrol(ctx echo.Context) error {
	class, err := contextObject[school.Class](ctx)
	if err != nil {
		return err
	}

	var data school.NewEnrolment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrolment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	enrolment, err := api.svc.Enrol(ctx.Request().Context(), class.ID, data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enrolment)
}

func (api *schoolApi) withdraw(ctx echo.Context) error {
	enrolment, err := api.svc.Withdraw(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "withdrawing enrolment")
	}
	return ctx.JSON(http.StatusOK, enrolment)
}

// Units

func (api *schoolApi) createUnit(ctx echo.Context) error {
	var data school.NewUnit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUnit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	unit, err := api.svc.CreateUnit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating unit")
	}
	return ctx.JSON(http.StatusCreated, unit)
}

func (api *schoolApi) queryUnits(ctx echo.Context) error {
	filter := new(school.UnitFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Unit{})
	}
	filter.Clean()

	units, err := api.svc.QueryUnits(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying units")
	}
	if units == nil {
		units = []school.Unit{}
	}
	return ctx.JSON(http.StatusOK, units)
}

func (api *schoolApi) retrieveUnit(ctx echo.Context) error {
	unit, err := contextObject[school.Unit](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, unit)
}

func (api *schoolApi) updateUnit(ctx echo.Context) error {
	unit, err := contextObject[school.Unit](ctx)
	if err != nil {
		return err
	}

	var data school.UpdateUnit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUnit")
	}
	if err = data.Validate(unit, api.validate); err != nil {
		return err
	}

	unit, err = api.svc.UpdateUnit(ctx.Request().Context(), unit, data)
	if err != nil {
		return errors.Wrap(err, "updating unit")
	}
	return ctx.JSON(http.StatusOK, unit)
}

func (api *schoolApi) destroyUnit(ctx echo.Context) error {
	unit, err := contextObject[school.Unit](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteUnit(ctx.Request().Context(), unit.ID); err != nil {
		return errors.Wrap(err, "deleting unit")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) trainerUnits(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	units, err := api.svc.TrainerUnits(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying trainer units")
	}
	if units == nil {
		units = []school.Unit{}
	}
	return ctx.JSON(http.StatusOK, units)
}
