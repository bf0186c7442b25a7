package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/assistant"
	"github.com/teachhub/backend/core/finance"
	"github.com/teachhub/backend/core/lessonplan"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/timetable"
	"github.com/teachhub/backend/core/user"
)

type (
	// HTTPMetrics records request metrics.
	HTTPMetrics interface {
		ObserveHTTP(method, route string, code int, elapsed time.Duration)
		IncThrottled(route string)
	}

	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       user.Service
		SchoolSvc     school.Service
		TimetableSvc  timetable.Service
		LessonPlanSvc lessonplan.Service
		AssessmentSvc assessment.Service
		FinanceSvc    finance.Service
		AssistantSvc  assistant.Service
		Metrics       HTTPMetrics
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.SchoolSvc, "SchoolSvc"),
		vala.IsNotNil(deps.TimetableSvc, "TimetableSvc"),
		vala.IsNotNil(deps.LessonPlanSvc, "LessonPlanSvc"),
		vala.IsNotNil(deps.AssessmentSvc, "AssessmentSvc"),
		vala.IsNotNil(deps.FinanceSvc, "FinanceSvc"),
		vala.IsNotNil(deps.AssistantSvc, "AssistantSvc"),
		vala.IsNotNil(deps.Metrics, "Metrics"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
	).CheckAndPanic()

	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		auth:       newAuthenticator(deps.Conf, deps.UserSvc),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware(s.Metrics))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	throttle := newRateLimiter(s.Conf.Server, s.Metrics).middleware

	registerUserAPI(g, jwt, throttle, s.auth, s.UserSvc, s.Validate)
	registerSchoolAPI(g, jwt, s.auth, s.SchoolSvc, s.Validate)
	registerTimetableAPI(g, jwt, s.auth, s.TimetableSvc, s.Validate)
	registerLessonPlanAPI(g, jwt, throttle, s.auth, s.LessonPlanSvc, s.AssistantSvc, s.Validate)
	registerAssessmentAPI(g, jwt, s.auth, s.AssessmentSvc, s.SchoolSvc, s.Validate)
	registerFinanceAPI(g, jwt, s.auth, s.FinanceSvc, s.Validate)
	registerAssistantAPI(g, jwt, throttle, s.auth, s.AssistantSvc, s.Validate)
}

// Start listens on Conf.Server.Address; listener errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}
