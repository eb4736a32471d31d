package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grading"
)

type oracleApi struct {
	oracle    grading.Oracle
	validator *core.Validator
	timeout   time.Duration
}

func registerOracleAPI(g *echo.Group, jwt echo.MiddlewareFunc, oracle grading.Oracle, v *core.Validator, timeout time.Duration) {
	api := oracleApi{oracle: oracle, validator: v, timeout: timeout}

	g.POST("/oracle/grade", api.grade, jwt, trainerMiddleware())
}

// grade proxies a grading context to the configured oracle, without storing anything.
func (api *oracleApi) grade(ctx echo.Context) error {
	var gc grading.Context
	if err := ctx.Bind(&gc); err != nil {
		return errors.Wrap(err, "binding to grading.Context")
	}
	gc.AssignmentTitle = core.CleanString(gc.AssignmentTitle)
	if err := api.validator.Struct(gc); err != nil {
		return err
	}

	oracleCtx, cancel := context.WithTimeout(ctx.Request().Context(), api.timeout)
	defer cancel()
	result, err := api.oracle.Grade(oracleCtx, gc)
	if err == nil {
		err = grading.CheckResult(result)
	}
	if err != nil {
		return errors.Wrap(err, "grading")
	}
	result.GraderType = grading.GraderAI
	return ctx.JSON(http.StatusOK, result)
}
