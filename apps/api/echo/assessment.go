package echoapi

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/school"
)

// evidenceBodyLimit leaves room for the multipart envelope around a max-sized file.
var evidenceBodyLimit = fmt.Sprintf("%dM", assessment.MaxEvidenceSize>>20+1)

type assessmentApi struct {
	svc       assessment.Service
	schoolSvc school.Service
	auth      *authenticator
	validate  *validator.Validate
}

func registerAssessmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc assessment.Service,
	schoolSvc school.Service,
	validate *validator.Validate,
) {
	api := assessmentApi{
		svc:       svc,
		schoolSvc: schoolSvc,
		auth:      auth,
		validate:  validate,
	}

	ag := g.Group("/assessments", jwt)
	ag.POST("", api.create, staffMiddleware)
	ag.GET("", api.query)

	dg := ag.Group("/:id", api.assessmentMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware)
	dg.DELETE("", api.destroy, staffMiddleware)
	dg.GET("/marks", api.marks, staffMiddleware)
	dg.PUT("/marks", api.recordMarks, staffMiddleware)

	g.GET("/marksheets", api.marksheet, jwt, staffMiddleware)
	g.GET("/grading-scale", api.gradingScale, jwt)
	g.GET("/students/:id/academic-record", api.academicRecord, jwt)

	eg := g.Group("/evidence", jwt)
	eg.POST("", api.submitEvidence, middleware.BodyLimit(evidenceBodyLimit))
	eg.GET("", api.queryEvidence)

	edg := eg.Group("/:id", api.evidenceMiddleware)
	edg.GET("/file", api.evidenceFile)
	edg.POST("/verify", api.verifyEvidence, staffMiddleware)
}

// assessmentMiddleware lets students through only for published assessments of their classes.
func (api *assessmentApi) assessmentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return objectMiddleware(func(ctx echo.Context, id string) (interface{}, error) {
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "getting context user")
		}
		a, err := api.svc.Get(ctx.Request().Context(), id)
		if err != nil {
			return nil, err
		}
		if ctxUsr.IsAdmin() || ctxUsr.IsTrainer() {
			return a, nil
		}
		if !a.Published {
			return nil, errHttpNotFound
		}
		enrolled, err := api.schoolSvc.IsActivelyEnrolled(ctx.Request().Context(), ctxUsr.ID, a.ClassID)
		if err != nil {
			return nil, errors.Wrap(err, "checking enrolment")
		}
		if !enrolled {
			return nil, errHttpNotFound
		}
		return a, nil
	})(next)
}

func (api *assessmentApi) evidenceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return objectMiddleware(func(ctx echo.Context, id string) (interface{}, error) {
		return api.svc.GetEvidence(ctx.Request().Context(), id)
	})(next)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) query(ctx echo.Context) error {
	filter := new(assessment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assessment.Assessment{})
	}
	filter.Clean()

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	assessments, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	if assessments == nil {
		assessments = []assessment.Assessment{}
	}
	return ctx.JSON(http.StatusOK, assessments)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	a, err := contextObject[assessment.Assessment](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	a, err := contextObject[assessment.Assessment](ctx)
	if err != nil {
		return err
	}

	var data assessment.UpdateAssessment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err = api.svc.Update(ctx.Request().Context(), ctxUsr, a, data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	a, err := contextObject[assessment.Assessment](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, a); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) marks(ctx echo.Context) error {
	a, err := contextObject[assessment.Assessment](ctx)
	if err != nil {
		return err
	}
	marks, err := api.svc.Marks(ctx.Request().Context(), a)
	if err != nil {
		return errors.Wrap(err, "querying marks")
	}
	if marks == nil {
		marks = []assessment.Mark{}
	}
	return ctx.JSON(http.StatusOK, marks)
}

func (api *assessmentApi) recordMarks(ctx echo.Context) error {
	a, err := contextObject[assessment.Assessment](ctx)
	if err != nil {
		return err
	}

	var data assessment.RecordMarks
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordMarks")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	marks, err := api.svc.RecordMarks(ctx.Request().Context(), ctxUsr, a, data)
	if err != nil {
		return errors.Wrap(err, "recording marks")
	}
	return ctx.JSON(http.StatusOK, marks)
}

type MarksheetQuery struct {
	ClassID string `json:"class" query:"class" validate:"required,uuid"`
	UnitID  string `json:"unit" query:"unit" validate:"required,uuid"`
}

func (mq *MarksheetQuery) Validate(validate *validator.Validate) error {
	mq.ClassID = core.CleanString(mq.ClassID)
	mq.UnitID = core.CleanString(mq.UnitID)
	return validate.Struct(mq)
}

func (api *assessmentApi) marksheet(ctx echo.Context) error {
	var query MarksheetQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to MarksheetQuery")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ms, err := api.svc.Marksheet(ctx.Request().Context(), ctxUsr, query.ClassID, query.UnitID)
	if err != nil {
		return errors.Wrap(err, "building marksheet")
	}
	return ctx.JSON(http.StatusOK, ms)
}

func (api *assessmentApi) gradingScale(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.GradingScale())
}

func (api *assessmentApi) academicRecord(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	record, err := api.svc.AcademicRecord(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building academic record")
	}
	return ctx.JSON(http.StatusOK, record)
}

// Evidence

func (api *assessmentApi) submitEvidence(ctx echo.Context) error {
	var data assessment.NewEvidence
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvidence")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ev, err := api.svc.SubmitEvidence(ctx.Request().Context(), ctxUsr, data, assessment.File{
		Name:        filepath.Base(fh.Filename),
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     src,
	})
	if err != nil {
		return errors.Wrap(err, "submitting evidence")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *assessmentApi) queryEvidence(ctx echo.Context) error {
	filter := new(assessment.EvidenceFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assessment.Evidence{})
	}
	filter.Clean()

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	evidence, err := api.svc.QueryEvidence(ctx.Request().Context(), ctxUsr, filter)
	if err != nil {
		return errors.Wrap(err, "querying evidence")
	}
	if evidence == nil {
		evidence = []assessment.Evidence{}
	}
	return ctx.JSON(http.StatusOK, evidence)
}

func (api *assessmentApi) evidenceFile(ctx echo.Context) error {
	ev, err := contextObject[assessment.Evidence](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rc, err := api.svc.OpenEvidence(ctx.Request().Context(), ctxUsr, ev)
	if err != nil {
		return errors.Wrap(err, "opening evidence")
	}
	defer rc.Close()

	contentType := ev.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", ev.FileName))
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func (api *assessmentApi) verifyEvidence(ctx echo.Context) error {
	ev, err := contextObject[assessment.Evidence](ctx)
	if err != nil {
		return err
	}

	var data assessment.Verification
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Verification")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ev, err = api.svc.VerifyEvidence(ctx.Request().Context(), ctxUsr, ev, data)
	if err != nil {
		return errors.Wrap(err, "verifying evidence")
	}
	return ctx.JSON(http.StatusOK, ev)
}
