package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/finance"
	"github.com/teachhub/backend/core/user"
)

type financeApi struct {
	svc      finance.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerFinanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc finance.Service,
	validate *validator.Validate,
) {
	api := financeApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	fg := g.Group("/finance", jwt)
	manage := adminMiddleware(user.FinanceRoles...)

	fg.POST("/fee-structures", api.createFeeStructure, manage)
	fg.GET("/fee-structures", api.queryFeeStructures, manage)
	fg.POST("/fee-structures/:id/apply", api.applyFeeStructure, manage)
	fg.POST("/charges", api.addCharge, manage)
	fg.POST("/payments", api.recordPayment, manage)
	fg.GET("/arrears", api.arrears, manage)

	// students read their own
	fg.GET("/students/:id/balance", api.balance)
	fg.GET("/students/:id/statement", api.statement)
}

func (api *financeApi) createFeeStructure(ctx echo.Context) error {
	var data finance.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *financeApi) queryFeeStructures(ctx echo.Context) error {
	structures, err := api.svc.QueryFeeStructures(
		ctx.Request().Context(),
		core.CleanString(ctx.QueryParam("class")),
		core.CleanString(ctx.QueryParam("term")),
	)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []finance.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *financeApi) applyFeeStructure(ctx echo.Context) error {
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	billed, err := api.svc.ApplyFeeStructure(ctx.Request().Context(), ctxUsr, fs)
	if err != nil {
		return errors.Wrap(err, "applying fee structure")
	}
	return ctx.JSON(http.StatusOK, ApplyFeeStructureResponse{Billed: billed})
}

func (api *financeApi) addCharge(ctx echo.Context) error {
	var data finance.NewCharge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCharge")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	charge, err := api.svc.AddCharge(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "adding charge")
	}
	return ctx.JSON(http.StatusCreated, charge)
}

func (api *financeApi) recordPayment(ctx echo.Context) error {
	var data finance.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	payment, err := api.svc.RecordPayment(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, payment)
}

func (api *financeApi) balance(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	studentID := ctx.Param("id")
	balance, err := api.svc.Balance(ctx.Request().Context(), ctxUsr, studentID)
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, BalanceResponse{StudentID: studentID, Balance: balance})
}

func (api *financeApi) statement(ctx echo.Context) error {
	var query finance.StatementQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to StatementQuery")
	}
	from, to, err := query.Range(api.validate)
	if err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stmt, err := api.svc.Statement(ctx.Request().Context(), ctxUsr, ctx.Param("id"), from, to)
	if err != nil {
		return errors.Wrap(err, "building statement")
	}
	return ctx.JSON(http.StatusOK, stmt)
}

func (api *financeApi) arrears(ctx echo.Context) error {
	classID := core.CleanString(ctx.QueryParam("class"))
	if classID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "class", Error: "this field is required"})
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	arrears, err := api.svc.Arrears(ctx.Request().Context(), ctxUsr, classID)
	if err != nil {
		return errors.Wrap(err, "listing arrears")
	}
	if arrears == nil {
		arrears = []finance.Arrear{}
	}
	return ctx.JSON(http.StatusOK, arrears)
}

type (
	ApplyFeeStructureResponse struct {
		Billed int `json:"billed"`
	}

	BalanceResponse struct {
		StudentID string `json:"student_id"`
		Balance   int64  `json:"balance"`
	}
)
