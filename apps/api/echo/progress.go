package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/progress"
)

type progressApi struct {
	engine *progress.Engine
}

type completeStepRequest struct {
	Notes string `json:"notes"`
}

type stepResponse struct {
	progress.StepProgress
	ModuleProgress progress.ModuleProgress `json:"module_progress"`
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, engine *progress.Engine) {
	api := progressApi{engine: engine}

	pg := g.Group("/progress", jwt)
	pg.GET("", api.export)
	pg.GET("/next", api.nextStep)
	pg.GET("/modules/:moduleID", api.moduleProgress)
	pg.POST("/modules/:moduleID/steps/:stepID/start", api.startStep)
	pg.POST("/modules/:moduleID/steps/:stepID/complete", api.completeStep)
}

// session opens a fresh progress session for the authenticated user.
func (api *progressApi) session(ctx echo.Context) (*progress.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	sess, err := api.engine.NewSession(ctx.Request().Context(), claims.Subject)
	return sess, errors.Wrap(err, "opening progress session")
}

func (api *progressApi) export(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Export())
}

func (api *progressApi) nextStep(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.NextStep())
}

func (api *progressApi) moduleProgress(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	mp, err := sess.ModuleProgress(ctx.Param("moduleID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mp)
}

func (api *progressApi) startStep(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	sp, err := sess.StartStep(ctx.Request().Context(), ctx.Param("moduleID"), ctx.Param("stepID"))
	if err != nil {
		return errors.Wrap(err, "starting step")
	}
	return api.stepJSON(ctx, sess, sp)
}

func (api *progressApi) completeStep(ctx echo.Context) error {
	var data completeStepRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to completeStepRequest")
		}
	}
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	sp, err := sess.CompleteStep(ctx.Request().Context(), ctx.Param("moduleID"), ctx.Param("stepID"), data.Notes)
	if err != nil {
		return errors.Wrap(err, "completing step")
	}
	return api.stepJSON(ctx, sess, sp)
}

// stepJSON responds with the step's progress and its module's progress as the session now sees it.
func (api *progressApi) stepJSON(ctx echo.Context, sess *progress.Session, sp progress.StepProgress) error {
	mp, err := sess.ModuleProgress(sp.ModuleID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stepResponse{StepProgress: sp, ModuleProgress: mp})
}
