package main

import (
	dig_container "github.com/trezcool/darasa/apps/api/di/dig"
	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
	metricsvc "github.com/trezcool/darasa/services/metrics"
	oraclesvc "github.com/trezcool/darasa/services/oracle"
	schedsvc "github.com/trezcool/darasa/services/scheduler"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	logger := dig_container.NewLogger(conf)

	store, err := dig_container.NewStore(conf, logger)
	if err != nil {
		logger.Fatal("setting up store", "error", err)
	}

	mailSvc := dig_container.NewEmailService(conf, logger)
	validator := dig_container.NewValidator()
	metrics := metricsvc.New()

	oracle, err := oraclesvc.New(conf, logger)
	if err != nil {
		logger.Fatal("setting up grading oracle", "error", err)
	}

	engine := progress.NewEngine(store.Progress, store.Catalog, metrics)
	submissions := submission.NewService(
		store.Submissions, store.Catalog, oracle, validator, mailSvc, logger, metrics, conf,
	)
	certificates := certificate.NewService(
		store.Certificates, store.Catalog, store.Progress, store.Submissions, mailSvc, logger, metrics,
	)

	scheduler, err := schedsvc.New(submissions, conf, logger)
	if err != nil {
		logger.Fatal("setting up scheduler", "error", err)
	}

	server := echoapi.NewServer(echoapi.Deps{
		Conf:         conf,
		Logger:       logger,
		DB:           store.DB,
		Validator:    validator,
		Progress:     engine,
		Submissions:  submissions,
		Certificates: certificates,
		Oracle:       oracle,
		Metrics:      metrics.Handler(),
	})

	serve(conf, logger, store.DB, server, scheduler)
}
