package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	appfs "github.com/trezcool/darasa/fs"
	schedsvc "github.com/trezcool/darasa/services/scheduler"
)

func main() {
	di := flag.String("di", "dig", "dependency wiring: dig | manual")
	flag.Parse()

	if *di == "manual" {
		startManual()
		return
	}
	startWithDig()
}

// serve runs the API and its background jobs until a shutdown signal or a server error.
func serve(conf *core.Config, logger core.Logger, db core.DB, server *echoapi.Server, scheduler *schedsvc.Scheduler) {
	// =========================================================================
	// Initialize App

	logger.Info("Application initializing", "version", conf.Build, "env", conf.Env)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", "error", err)
		}
	}()

	// =========================================================================
	// Start API Service

	scheduler.Start()
	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal("server error", "error", err)

	case sig := <-server.ShutdownSignal():
		logger.Info("Start shutdown...", "signal", sig.String())

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", "error", err)

			if err = server.Close(); err != nil {
				logger.Fatal("could not force stop server", "error", err)
			}
		}

		// let a running sweep finish
		stopCtx, stopCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer stopCancel()
		scheduler.Stop(stopCtx)
	}
}
