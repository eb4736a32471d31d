package main

import (
	"log"

	dig_container "github.com/trezcool/darasa/apps/api/di/dig"
	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	schedsvc "github.com/trezcool/darasa/services/scheduler"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		db core.DB,
		server *echoapi.Server,
		scheduler *schedsvc.Scheduler,
	) {
		serve(conf, logger, db, server, scheduler)
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
