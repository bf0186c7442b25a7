package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core/assistant"
	"github.com/teachhub/backend/core/lessonplan"
)

type lessonPlanApi struct {
	svc          lessonplan.Service
	assistantSvc assistant.Service
	auth         *authenticator
	validate     *validator.Validate
}

func registerLessonPlanAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	throttle echo.MiddlewareFunc,
	auth *authenticator,
	svc lessonplan.Service,
	assistantSvc assistant.Service,
	validate *validator.Validate,
) {
	api := lessonPlanApi{
		svc:          svc,
		assistantSvc: assistantSvc,
		auth:         auth,
		validate:     validate,
	}

	lg := g.Group("/lesson-plans", jwt, staffMiddleware)
	lg.POST("", api.create)
	lg.GET("", api.query)

	dg := lg.Group("/:id", api.planMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/submit", api.submit)
	dg.POST("/review", api.review, adminMiddleware())
	dg.POST("/notes", api.generateNotes, throttle)
}

// planMiddleware hides the plans the context user may not read.
func (api *lessonPlanApi) planMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return objectMiddleware(func(ctx echo.Context, id string) (interface{}, error) {
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "getting context user")
		}
		lp, err := api.svc.Get(ctx.Request().Context(), id)
		if err != nil {
			return nil, err
		}
		if !api.svc.CanView(ctxUsr, lp) {
			return nil, errHttpNotFound
		}
		return lp, nil
	})(next)
}

func (api *lessonPlanApi) create(ctx echo.Context) error {
	var data lessonplan.NewLessonPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLessonPlan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	lp, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson plan")
	}
	return ctx.JSON(http.StatusCreated, lp)
}

func (api *lessonPlanApi) query(ctx echo.Context) error {
	filter := new(lessonplan.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []lessonplan.LessonPlan{})
	}
	filter.Clean()

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// trainers only see their own plans
	if !ctxUsr.IsAdmin() {
		filter.TrainerID = ctxUsr.ID
	}

	plans, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying lesson plans")
	}
	if plans == nil {
		plans = []lessonplan.LessonPlan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *lessonPlanApi) retrieve(ctx echo.Context) error {
	lp, err := contextObject[lessonplan.LessonPlan](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *lessonPlanApi) update(ctx echo.Context) error {
	lp, err := contextObject[lessonplan.LessonPlan](ctx)
	if err != nil {
		return err
	}

	var data lessonplan.UpdateLessonPlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLessonPlan")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	lp, err = api.svc.Update(ctx.Request().Context(), ctxUsr, lp, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson plan")
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *lessonPlanApi) destroy(ctx echo.Context) error {
	lp, err := contextObject[lessonplan.LessonPlan](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, lp); err != nil {
		return errors.Wrap(err, "deleting lesson plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonPlanApi) submit(ctx echo.Context) error {
	lp, err := contextObject[lessonplan.LessonPlan](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	lp, err = api.svc.Submit(ctx.Request().Context(), ctxUsr, lp)
	if err != nil {
		return errors.Wrap(err, "submitting lesson plan")
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *lessonPlanApi) review(ctx echo.Context) error {
	lp, err := contextObject[lessonplan.LessonPlan](ctx)
	if err != nil {
		return err
	}

	var data lessonplan.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	lp, err = api.svc.Review(ctx.Request().Context(), ctxUsr, lp, data)
	if err != nil {
		return errors.Wrap(err, "reviewing lesson plan")
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *lessonPlanApi) generateNotes(ctx echo.Context) error {
	lp, err := contextObject[lessonplan.LessonPlan](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lp, notes, err := api.assistantSvc.LessonNotesForPlan(ctx.Request().Context(), ctxUsr, lp)
	if err != nil {
		return errors.Wrap(err, "generating lesson notes")
	}
	return ctx.JSON(http.StatusOK, PlanNotesResponse{Plan: lp, Notes: notes})
}

type PlanNotesResponse struct {
	Plan  lessonplan.LessonPlan `json:"plan"`
	Notes assistant.LessonNotes `json:"notes"`
}
