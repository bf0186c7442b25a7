package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

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
	"github.com/teachhub/backend/storage/database"
	dummydb "github.com/teachhub/backend/storage/database/dummy"
	boiledrepos "github.com/teachhub/backend/storage/database/sqlboiler"
	"github.com/teachhub/backend/storage/firebase"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	repositories struct {
		dig.Out
		Users       user.Repository
		Schools     school.Repository
		Timetables  timetable.Repository
		LessonPlans lessonplan.Repository
		Assessments assessment.Repository
		Finances    finance.Repository
	}

	stores struct {
		dig.Out
		Archive assistant.Archive
		Blobs   assessment.BlobStore
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       user.Service
		SchoolSvc     school.Service
		TimetableSvc  timetable.Service
		LessonPlanSvc lessonplan.Service
		AssessmentSvc assessment.Service
		FinanceSvc    finance.Service
		AssistantSvc  assistant.Service
		Metrics       echoapi.HTTPMetrics
		Validate      *validator.Validate
		Translator    ut.Translator
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB returns nil handles when the in-memory driver is configured.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, core.DB) {
	if conf.Storage.Driver == DriverMemory {
		return nil, nil
	}

	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newRepositories(conf *core.Config, db *sql.DB) (repositories, error) {
	switch conf.Storage.Driver {
	case DriverMemory:
		mem, err := dummydb.Open()
		if err != nil {
			return repositories{}, err
		}
		return repositories{
			Users:       dummydb.NewUserRepository(mem),
			Schools:     dummydb.NewSchoolRepository(mem),
			Timetables:  dummydb.NewTimetableRepository(mem),
			LessonPlans: dummydb.NewLessonPlanRepository(mem),
			Assessments: dummydb.NewAssessmentRepository(mem),
			Finances:    dummydb.NewFinanceRepository(mem),
		}, nil
	case DriverPostgres, "":
		return repositories{
			Users:       boiledrepos.NewUserRepository(db),
			Schools:     boiledrepos.NewSchoolRepository(db),
			Timetables:  boiledrepos.NewTimetableRepository(db),
			LessonPlans: boiledrepos.NewLessonPlanRepository(db),
			Assessments: boiledrepos.NewAssessmentRepository(db),
			Finances:    boiledrepos.NewFinanceRepository(db),
		}, nil
	default:
		return repositories{}, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

// newStores keeps generations & evidence files on Firebase when a project is configured.
func newStores(conf *core.Config, logger core.Logger) (stores, error) {
	if conf.Storage.FirebaseProjectID == "" {
		logger.Info("no firebase project configured: generations and evidence files are kept in memory")
		return stores{Archive: dummydb.NewArchive(), Blobs: dummydb.NewBlobStore()}, nil
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, conf.Storage)
	if err != nil {
		return stores{}, err
	}
	archive, err := firebase.NewArchive(ctx, app)
	if err != nil {
		return stores{}, err
	}
	blobs, err := firebase.NewBlobStore(ctx, app, conf.Storage.EvidenceBucket)
	if err != nil {
		_ = archive.Close()
		return stores{}, err
	}
	return stores{Archive: archive, Blobs: blobs}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newMetrics registers on the default registry, served by the debug server.
func newMetrics() *metricsvc.Recorder {
	return metricsvc.New(prometheus.DefaultRegisterer)
}

func newMarksheetCache(conf *core.Config, observer cache.Observer) *cache.MarksheetCache {
	return cache.NewMarksheetCache(conf.Cache.MarksheetTTL, conf.Cache.CleanupInterval, observer)
}

func newGenerator(conf *core.Config) (assistant.Generator, error) {
	return genaisvc.New(conf.Assistant)
}

func newCatalogue() (assistant.Catalogue, error) {
	return assistant.LoadCatalogue()
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		UserSvc:       p.UserSvc,
		SchoolSvc:     p.SchoolSvc,
		TimetableSvc:  p.TimetableSvc,
		LessonPlanSvc: p.LessonPlanSvc,
		AssessmentSvc: p.AssessmentSvc,
		FinanceSvc:    p.FinanceSvc,
		AssistantSvc:  p.AssistantSvc,
		Metrics:       p.Metrics,
		Validate:      p.Validate,
		Translator:    p.Translator,
	})
}

type NewConfigFunc func() *core.Config

// New returns a new dependency injection dig.Container
func New(newConfig NewConfigFunc) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newStores))
	must(c.Provide(newEmailService))
	must(c.Provide(newMetrics, dig.As(
		new(assistant.Metrics),
		new(echoapi.HTTPMetrics),
		new(cache.Observer),
	)))
	must(c.Provide(newMarksheetCache, dig.As(
		new(assessment.MarksheetCache),
		new(school.RosterListener),
	)))
	must(c.Provide(newGenerator))
	must(c.Provide(newCatalogue))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(timetable.NewService))
	must(c.Provide(lessonplan.NewService))
	must(c.Provide(assessment.NewService))
	must(c.Provide(finance.NewService))
	must(c.Provide(assistant.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
