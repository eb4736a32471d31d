package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/certificate"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(app *echo.Echo, g *echo.Group, jwt echo.MiddlewareFunc, svc *certificate.Service) {
	api := certificateApi{svc: svc}

	// public
	app.GET("/certificates/:code", api.verify)

	cg := g.Group("/classes/:classID", jwt)
	cg.GET("/progress", api.classProgress)
	cg.GET("/roster", api.roster, trainerMiddleware())
	cg.POST("/certificate", api.issue)
}

func (api *certificateApi) classProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	cp, err := api.svc.ClassProgress(ctx.Request().Context(), claims.Subject, ctx.Param("classID"))
	if err != nil {
		return errors.Wrap(err, "computing class progress")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *certificateApi) roster(ctx echo.Context) error {
	entries, err := api.svc.RosterProgress(ctx.Request().Context(), ctx.Param("classID"))
	if err != nil {
		return errors.Wrap(err, "computing roster progress")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *certificateApi) issue(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	cert, err := api.svc.Issue(ctx.Request().Context(), claims.Subject, ctx.Param("classID"))
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) verify(ctx echo.Context) error {
	cert, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
