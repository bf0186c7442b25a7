package tests

import (
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	echoapi "github.com/teachhub/backend/apps/api/echo"
	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/assistant"
	"github.com/teachhub/backend/core/finance"
	"github.com/teachhub/backend/core/lessonplan"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/timetable"
	"github.com/teachhub/backend/core/user"
	emailsvc "github.com/teachhub/backend/services/email"
	genaisvc "github.com/teachhub/backend/services/genai"
	logsvc "github.com/teachhub/backend/services/logger"
	metricsvc "github.com/teachhub/backend/services/metrics"
	"github.com/teachhub/backend/storage/cache"
	dummydb "github.com/teachhub/backend/storage/database/dummy"
)

var (
	conf *core.Config
	db   *dummydb.DB
	app  *echoapi.Server

	usrRepo        user.Repository
	schoolRepo     school.Repository
	timetableRepo  timetable.Repository
	lessonPlanRepo lessonplan.Repository
	assessmentRepo assessment.Repository
	financeRepo    finance.Repository

	usrSvc   user.Service
	mailSvc  *emailsvc.ConsoleServiceMock
	gen      *genaisvc.EchoGenerator
	blobs    *dummydb.BlobStore
	msCache  *cache.MarksheetCache
	registry *prometheus.Registry

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = core.NewTestConfig()
	logger := logsvc.New("TEST : ", conf)

	// set up DB & repos
	var err error
	if db, err = dummydb.Open(); err != nil {
		logger.Fatal("opening in-memory db", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	schoolRepo = dummydb.NewSchoolRepository(db)
	timetableRepo = dummydb.NewTimetableRepository(db)
	lessonPlanRepo = dummydb.NewLessonPlanRepository(db)
	assessmentRepo = dummydb.NewAssessmentRepository(db)
	financeRepo = dummydb.NewFinanceRepository(db)

	// validation
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	timetable.InitValidators(validate, translator)
	lessonplan.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)
	finance.InitValidators(validate, translator)
	assistant.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf, logger)

	// set up services
	registry = prometheus.NewRegistry()
	metrics := metricsvc.New(registry)
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	gen = genaisvc.NewEcho()
	blobs = dummydb.NewBlobStore()
	msCache = cache.NewMarksheetCache(conf.Cache.MarksheetTTL, conf.Cache.CleanupInterval, metrics)

	usrSvc = user.NewServiceMock(conf, usrRepo, mailSvc, logger)
	schoolSvc := school.NewService(schoolRepo, usrSvc, msCache)
	timetableSvc := timetable.NewService(nil, timetableRepo, schoolSvc)
	lessonPlanSvc := lessonplan.NewService(lessonPlanRepo, schoolSvc)
	assessmentSvc := assessment.NewService(nil, assessmentRepo, schoolSvc, usrSvc, msCache, blobs, logger)
	financeSvc := finance.NewService(conf, nil, financeRepo, schoolSvc, usrSvc, mailSvc, logger)

	prompts, err := assistant.LoadCatalogue()
	if err != nil {
		logger.Fatal("loading prompt catalogue", err)
	}
	assistantSvc := assistant.NewService(prompts, gen, dummydb.NewArchive(), metrics, validate,
		schoolSvc, timetableSvc, assessmentSvc, lessonPlanSvc, logger)

	// set up server
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		SchoolSvc:     schoolSvc,
		TimetableSvc:  timetableSvc,
		LessonPlanSvc: lessonPlanSvc,
		AssessmentSvc: assessmentSvc,
		FinanceSvc:    financeSvc,
		AssistantSvc:  assistantSvc,
		Metrics:       metrics,
		Validate:      validate,
		Translator:    translator,
	})

	os.Exit(m.Run())
}

// resetDB empties the in-memory database and the caches.
func resetDB(t *testing.T) {
	t.Helper()
	db.Flush()
	msCache.Flush()
	mailSvc.Reset()
}
