package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core/assistant"
)

type assistantApi struct {
	svc      assistant.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerAssistantAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	throttle echo.MiddlewareFunc,
	auth *authenticator,
	svc assistant.Service,
	validate *validator.Validate,
) {
	api := assistantApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	ag := g.Group("/assistant", jwt, throttle)
	ag.POST("/lesson-notes", api.lessonNotes)
	ag.POST("/qa", api.academicQA)
	ag.POST("/timetable-analysis", api.timetableAnalysis)
	ag.POST("/performance-analysis", api.performanceAnalysis)
	ag.POST("/integrate", api.integrate)
	ag.GET("/history", api.history)
	ag.GET("/history/:id", api.generation)
}

func (api *assistantApi) lessonNotes(ctx echo.Context) error {
	var data assistant.LessonNotesInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonNotesInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notes, err := api.svc.LessonNotes(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "generating lesson notes")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *assistantApi) academicQA(ctx echo.Context) error {
	var data assistant.QAInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QAInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	answer, err := api.svc.AcademicQA(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "answering question")
	}
	return ctx.JSON(http.StatusOK, answer)
}

func (api *assistantApi) timetableAnalysis(ctx echo.Context) error {
	var data assistant.TimetableAnalysisInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TimetableAnalysisInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	analysis, err := api.svc.TimetableAnalysis(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "analysing timetable")
	}
	return ctx.JSON(http.StatusOK, analysis)
}

func (api *assistantApi) performanceAnalysis(ctx echo.Context) error {
	var data assistant.PerformanceAnalysisInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PerformanceAnalysisInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	analysis, err := api.svc.PerformanceAnalysis(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "analysing performance")
	}
	return ctx.JSON(http.StatusOK, analysis)
}

func (api *assistantApi) integrate(ctx echo.Context) error {
	var data assistant.IntegrateInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IntegrateInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	out, err := api.svc.Integrate(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "integrating")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *assistantApi) history(ctx echo.Context) error {
	var query assistant.HistoryQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to HistoryQuery")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	generations, err := api.svc.History(ctx.Request().Context(), ctxUsr, query)
	if err != nil {
		return errors.Wrap(err, "querying history")
	}
	if generations == nil {
		generations = []assistant.Generation{}
	}
	return ctx.JSON(http.StatusOK, generations)
}

func (api *assistantApi) generation(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	gen, err := api.svc.Generation(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding generation")
	}
	return ctx.JSON(http.StatusOK, gen)
}
