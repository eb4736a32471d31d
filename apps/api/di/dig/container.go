package dig_container

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	metricsvc "github.com/trezcool/darasa/services/metrics"
	oraclesvc "github.com/trezcool/darasa/services/oracle"
	schedsvc "github.com/trezcool/darasa/services/scheduler"
	"github.com/trezcool/darasa/storage"
)

const setupTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories exposes the store's repositories to the container.
type Repositories struct {
	dig.Out
	DB           core.DB
	Catalog      catalog.Repository
	Progress     progress.Repository
	Submissions  submission.Repository
	Certificates certificate.Repository
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.New("api", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("db", conf)
}

// NewStore opens the configured store and imports conf.CatalogFile when set.
func NewStore(conf *core.Config, logger core.Logger) (*storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	store, err := storage.NewStore(ctx, conf)
	if err != nil {
		return nil, err
	}
	if conf.CatalogFile != "" {
		c, err := catalog.ImportFile(ctx, store.Catalog, conf.CatalogFile)
		if err != nil {
			_ = store.DB.Close()
			return nil, err
		}
		logger.Info("catalog imported", "file", conf.CatalogFile, "classes", len(c.Classes))
	}
	return store, nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	store, err := NewStore(conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal("setting up store", "error", err)
	}
	return Repositories{
		DB:           store.DB,
		Catalog:      store.Catalog,
		Progress:     store.Progress,
		Submissions:  store.Submissions,
		Certificates: store.Certificates,
	}
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func NewValidator() *core.Validator {
	return core.NewValidator(validator.New(), core.NewTranslator())
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	db core.DB,
	v *core.Validator,
	engine *progress.Engine,
	submissions *submission.Service,
	certificates *certificate.Service,
	oracle grading.Oracle,
	metrics *metricsvc.Prometheus,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.Deps{
		Conf:         conf,
		Logger:       logger,
		DB:           db,
		Validator:    v,
		Progress:     engine,
		Submissions:  submissions,
		Certificates: certificates,
		Oracle:       oracle,
		Metrics:      metrics.Handler(),
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(NewLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(NewEmailService))
	must(c.Provide(NewValidator))
	must(c.Provide(metricsvc.New))
	must(c.Provide(func(m *metricsvc.Prometheus) core.Metrics { return m }))
	must(c.Provide(oraclesvc.New))
	must(c.Provide(progress.NewEngine))
	must(c.Provide(submission.NewService))
	must(c.Provide(certificate.NewService))
	must(c.Provide(func(svc *submission.Service) schedsvc.StaleReleaser { return svc }))
	must(c.Provide(schedsvc.New))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
