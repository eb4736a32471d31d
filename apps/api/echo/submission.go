package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

// SubmitResponse is a stored submission; GradingError is set when auto grading failed and
// the submission was left pending.
type SubmitResponse struct {
	submission.Submission
	GradingError string `json:"grading_error,omitempty"`
}

type GradeResponse struct {
	Submission submission.Submission `json:"submission"`
	Grade      submission.Grade      `json:"grade"`
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *submission.Service) {
	api := submissionApi{svc: svc}

	g.POST("/assignments/:assignmentID/submissions", api.submit, jwt)

	sg := g.Group("/submissions/:submissionID", jwt)
	sg.GET("", api.retrieve)
	sg.POST("/grading", api.requestGrading)
	sg.POST("/grades", api.grade, trainerMiddleware())
	sg.POST("/regrades", api.regrade, trainerMiddleware())
}

// ownedSubmission returns the path's submission if the user owns it or is a trainer.
// Other users get a 404 so submission ids do not leak.
func (api *submissionApi) ownedSubmission(ctx echo.Context) (submission.Detail, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return submission.Detail{}, errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("submissionID")
	detail, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return submission.Detail{}, err
	}
	if detail.StudentID != claims.Subject && !claims.IsTrainer() {
		return submission.Detail{}, core.NewNotFoundError("submission", id)
	}
	return detail, nil
}

func (api *submissionApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	data.AssignmentID = ctx.Param("assignmentID")
	data.StudentID = claims.Subject

	sub, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		var oErr *core.GradingOracleError
		if sub.ID == "" || !errors.As(err, &oErr) {
			return err
		}
		// stored, grading can be retried
		return ctx.JSON(http.StatusCreated, SubmitResponse{Submission: sub, GradingError: oErr.Kind})
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{Submission: sub})
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	detail, err := api.ownedSubmission(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *submissionApi) requestGrading(ctx echo.Context) error {
	detail, err := api.ownedSubmission(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.RequestGrading(ctx.Request().Context(), detail.ID)
	if err != nil {
		return errors.Wrap(err, "requesting grading")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) bindManualGrade(ctx echo.Context) (grading.ManualGrade, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return grading.ManualGrade{}, errors.Wrap(err, "getting context claims")
	}
	var data grading.ManualGrade
	if err := ctx.Bind(&data); err != nil {
		return grading.ManualGrade{}, errors.Wrap(err, "binding to ManualGrade")
	}
	data.GraderID = claims.Subject
	return data, nil
}

func (api *submissionApi) grade(ctx echo.Context) error {
	data, err := api.bindManualGrade(ctx)
	if err != nil {
		return err
	}
	sub, grade, err := api.svc.GradeManually(ctx.Request().Context(), ctx.Param("submissionID"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusCreated, GradeResponse{Submission: sub, Grade: grade})
}

func (api *submissionApi) regrade(ctx echo.Context) error {
	data, err := api.bindManualGrade(ctx)
	if err != nil {
		return err
	}
	grade, err := api.svc.Regrade(ctx.Request().Context(), ctx.Param("submissionID"), data)
	if err != nil {
		return errors.Wrap(err, "regrading submission")
	}
	return ctx.JSON(http.StatusCreated, grade)
}
