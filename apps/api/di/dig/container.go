package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/clubhouse/apps/api/echo"
	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/messaging"
	"github.com/trezcool/clubhouse/core/newsletter"
	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/schedule"
	"github.com/trezcool/clubhouse/core/user"
	emailsvc "github.com/trezcool/clubhouse/services/email"
	"github.com/trezcool/clubhouse/services/events"
	logsvc "github.com/trezcool/clubhouse/services/logger"
	schedsvc "github.com/trezcool/clubhouse/services/scheduler"
	"github.com/trezcool/clubhouse/storage/database"
	sqlxrepos "github.com/trezcool/clubhouse/storage/database/sqlx"
	"github.com/trezcool/clubhouse/storage/kv"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// CounterStore is the newsletter rate limit store; it is closed on shutdown.
type CounterStore interface {
	newsletter.CounterStore
	io.Closer
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db, "up"); err != nil {
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

// newCounterStore connects to Redis, falling back to a process-local store when it is unreachable.
func newCounterStore(conf *core.Config, logger core.Logger) CounterStore {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := kv.OpenRedis(ctx, conf)
	if err != nil {
		logger.Warn(fmt.Sprintf("redis unavailable, rate limits are per process: %v", err), err)
		return kv.NewMemoryStore()
	}
	return store
}

// newEventBus connects to NATS, falling back to an in-process bus when it is unreachable.
func newEventBus(conf *core.Config, logger core.Logger) core.EventBus {
	bus, err := events.NewNatsBus(conf, logger)
	if err != nil {
		logger.Warn(fmt.Sprintf("nats unavailable, notifications are per process: %v", err), err)
		return events.NewMemoryBus()
	}
	return bus
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newNewsletterService(
	repo newsletter.Repository,
	store CounterStore,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) *newsletter.Service {
	return newsletter.NewService(repo, store, mailSvc, logger, validate, conf)
}

func newScheduler(svc *reminder.Service, logger core.Logger, conf *core.Config) (*schedsvc.Scheduler, error) {
	s := schedsvc.New(svc, logger, conf)
	if err := s.Register(); err != nil {
		return nil, err
	}
	return s, nil
}

type depsParams struct {
	dig.In

	UserSvc       user.ServiceInterface
	ProgramSvc    *program.Service
	ScheduleSvc   *schedule.Service
	ReminderSvc   *reminder.Service
	MessagingSvc  *messaging.Service
	NewsletterSvc *newsletter.Service
	Validate      *validator.Validate
	Translator    ut.Translator
}

func newDeps(p depsParams) *echoapi.Deps {
	return &echoapi.Deps{
		UserSvc:       p.UserSvc,
		ProgramSvc:    p.ProgramSvc,
		ScheduleSvc:   p.ScheduleSvc,
		ReminderSvc:   p.ReminderSvc,
		MessagingSvc:  p.MessagingSvc,
		NewsletterSvc: p.NewsletterSvc,
		Validate:      p.Validate,
		Translator:    p.Translator,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidate))

	// infrastructure
	must(c.Provide(newDB))
	must(c.Provide(emailsvc.New))
	must(c.Provide(newCounterStore))
	must(c.Provide(newEventBus))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewProgramRepository, dig.As(new(program.Repository))))
	must(c.Provide(sqlxrepos.NewScheduleRepository, dig.As(new(schedule.Repository))))
	must(c.Provide(sqlxrepos.NewReminderRepository, dig.As(new(reminder.Repository))))
	must(c.Provide(sqlxrepos.NewMessagingRepository, dig.As(new(messaging.Repository))))
	must(c.Provide(sqlxrepos.NewNewsletterRepository, dig.As(new(newsletter.Repository))))

	// services
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(program.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(reminder.NewService))
	must(c.Provide(messaging.NewService))
	must(c.Provide(newNewsletterService))
	must(c.Provide(newScheduler))

	// API
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
