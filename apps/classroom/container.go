package main

import (
	"context"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"
	"gorm.io/gorm"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
	logsvc "github.com/trezcool/classroom/services/logger"
	notifysvc "github.com/trezcool/classroom/services/notify"
	"github.com/trezcool/classroom/services/pubsub"
	"github.com/trezcool/classroom/storage/database"
	dummydb "github.com/trezcool/classroom/storage/database/dummy"
	gormrepos "github.com/trezcool/classroom/storage/database/gormdb"
	sqlxrepos "github.com/trezcool/classroom/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// remote holds the adapters of the remote data service selected by the configuration.
type remote struct {
	dig.Out
	Users    user.Repository
	Courses  course.Repository
	Messages chat.Backend
	Channel  chat.Channel
	Shutdown *shutdown
}

// shutdown collects the release funcs of the opened connections.
type shutdown struct {
	fns []func() error
}

func (s *shutdown) add(fn func() error) {
	s.fns = append(s.fns, fn)
}

// run releases in reverse opening order.
func (s *shutdown) run(logger core.Logger) {
	for i := len(s.fns) - 1; i >= 0; i-- {
		if err := s.fns[i](); err != nil {
			logger.Error("failed to close", err)
		}
	}
	s.fns = nil
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stderr, "CLASSROOM : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stderr, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRemote(conf *core.Config, loggerParam DBLoggerParam) (remote, error) {
	ctx := context.Background()
	logger := loggerParam.Logger
	out := remote{Shutdown: &shutdown{}}

	switch conf.Database.Engine {
	case core.EngineDummy:
		db, err := dummydb.Open()
		if err != nil {
			return remote{}, err
		}
		if conf.Database.Seed {
			if err := dummydb.Seed(ctx, db); err != nil {
				return remote{}, err
			}
		}
		out.Users = dummydb.NewUserRepository(db)
		out.Courses = dummydb.NewCourseRepository(db)
		out.Messages = dummydb.NewMessageRepository(db)

	case core.EnginePostgres:
		if conf.Realtime.Driver == core.DriverPostgres { // pushes come from the sqlx schema trigger
			db, err := database.Open(ctx, conf)
			if err != nil {
				return remote{}, err
			}
			out.Shutdown.add(db.Close)
			if err := database.Migrate(ctx, db); err != nil {
				out.Shutdown.run(logger)
				return remote{}, err
			}
			out.Users = sqlxrepos.NewUserRepository(db)
			out.Courses = sqlxrepos.NewCourseRepository(db)
			out.Messages = sqlxrepos.NewMessageRepository(db)
			break
		}
		fallthrough

	case core.EngineSQLite:
		db, err := gormrepos.Open(conf)
		if err != nil {
			return remote{}, err
		}
		out.Shutdown.add(closeGorm(db))
		out.Users = gormrepos.NewUserRepository(db)
		out.Courses = gormrepos.NewCourseRepository(db)
		out.Messages = gormrepos.NewMessageRepository(db)

	default:
		return remote{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	var pub pubsub.Publisher
	switch conf.Realtime.Driver {
	case core.DriverInMem:
		hub := pubsub.NewHub(conf, logger)
		out.Channel, pub = hub, hub
	case core.DriverRedis:
		bus, err := pubsub.NewRedisBus(conf, logger)
		if err != nil {
			out.Shutdown.run(logger)
			return remote{}, err
		}
		out.Shutdown.add(bus.Close)
		out.Channel, pub = bus, bus
	case core.DriverPostgres:
		out.Channel = pubsub.NewPGListener(conf, logger)
	default:
		out.Shutdown.run(logger)
		return remote{}, errors.Errorf("unknown realtime driver %q", conf.Realtime.Driver)
	}
	if pub != nil {
		out.Messages = pubsub.NewPublishingBackend(out.Messages, pub, logger)
	}

	logger.Info("remote ready", map[string]interface{}{"engine": conf.Database.Engine, "driver": conf.Realtime.Driver})
	return out, nil
}

func closeGorm(db *gorm.DB) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}

func newNotifier(conf *core.Config, logger core.Logger) core.Notifier {
	return notifysvc.NewConsoleNotifier(os.Stdout, conf, logger)
}

func newUserService(conf *core.Config, repo user.Repository) *user.Service {
	return user.NewService(repo, conf.Chat.UnknownSenderPrefix)
}

func newChatManager(
	conf *core.Config,
	backend chat.Backend,
	channel chat.Channel,
	session *user.Session,
	users *user.Service,
	notifier core.Notifier,
	logger core.Logger,
) *chat.Manager {
	return chat.NewManager(chat.Deps{
		Backend:  backend,
		Channel:  channel,
		Session:  session,
		Names:    users,
		Notifier: notifier,
		Logger:   logger,
	}, conf.Chat)
}

func newCLI(session *user.Session, users *user.Service, store *course.Store, mgr *chat.Manager) *commandLine {
	return newCommandLine(session, users, store, mgr, os.Stdin, os.Stdout)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRemote))
	must(c.Provide(newNotifier))
	must(c.Provide(user.NewSession))
	must(c.Provide(newUserService))
	must(c.Provide(course.NewStore))
	must(c.Provide(newChatManager))
	must(c.Provide(newCLI))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
