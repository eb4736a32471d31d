package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	oraclesvc "github.com/trezcool/darasa/services/oracle"
	"github.com/trezcool/darasa/storage"
	"github.com/trezcool/darasa/storage/database"
)

func main() {
	flags := flag.NewFlagSet("admin", flag.ExitOnError)
	inmem := flags.Bool("inmem", false, "Run against a fresh in-memory store (seeded from CATALOGFILE when set).")
	_ = flags.Parse(os.Args[1:])

	conf := core.NewConfig()
	if *inmem {
		conf.Database.Engine = storage.EngineMemory
	}
	logger := logsvc.New("admin", conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := commandLine{
		out:    os.Stdout,
		indent: term.IsTerminal(int(os.Stdout.Fd())),
		openSQL: func(ctx context.Context) (*sql.DB, error) {
			if conf.Database.Engine == storage.EngineMemory {
				return nil, errors.New("migrations need a SQL database")
			}
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return nil, err
			}
			db, err := database.Open(ctx, conf)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
		openServices: func(ctx context.Context) (*appServices, error) {
			return newAppServices(ctx, conf, logger)
		},
	}

	args := append([]string{os.Args[0]}, flags.Args()...)
	err := cli.run(ctx, args)
	if cli.svc != nil {
		_ = cli.svc.store.DB.Close()
	}
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newAppServices(ctx context.Context, conf *core.Config, logger core.Logger) (*appServices, error) {
	store, err := storage.NewStore(ctx, conf)
	if err != nil {
		return nil, err
	}
	if conf.CatalogFile != "" {
		if _, err := catalog.ImportFile(ctx, store.Catalog, conf.CatalogFile); err != nil {
			_ = store.DB.Close()
			return nil, err
		}
	}

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	oracle, err := oraclesvc.New(conf, logger)
	if err != nil {
		_ = store.DB.Close()
		return nil, err
	}

	v := core.NewValidator(validator.New(), core.NewTranslator())
	metrics := core.NewNopMetrics()

	return &appServices{
		store:  store,
		engine: progress.NewEngine(store.Progress, store.Catalog, metrics),
		submissions: submission.NewService(
			store.Submissions, store.Catalog, oracle, v, mailSvc, logger, metrics, conf,
		),
		certificates: certificate.NewService(
			store.Certificates, store.Catalog, store.Progress, store.Submissions, mailSvc, logger, metrics,
		),
	}, nil
}
