package submission

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/grading"
)

const rollbackTimeout = 5 * time.Second

type Service struct {
	repo           Repository
	catalog        catalog.Repository
	oracle         grading.Oracle
	validator      *core.Validator
	mailSvc        core.EmailService
	logger         core.Logger
	metrics        core.Metrics
	gradingTimeout time.Duration
	nowFunc        func() time.Time // mockable
}

func NewService(
	repo Repository,
	catalogRepo catalog.Repository,
	oracle grading.Oracle,
	v *core.Validator,
	mailSvc core.EmailService,
	logger core.Logger,
	metrics core.Metrics,
	conf *core.Config,
) *Service {
	return &Service{
		repo:           repo,
		catalog:        catalogRepo,
		oracle:         oracle,
		validator:      v,
		mailSvc:        mailSvc,
		logger:         logger,
		metrics:        metrics,
		gradingTimeout: conf.Grading.Timeout,
		nowFunc:        core.NowUTC,
	}
}

// SetClock replaces the service's clock.
func (svc *Service) SetClock(now func() time.Time) {
	svc.nowFunc = now
}

// activeAssignment returns the assignment if it is active and the student is actively enrolled in its class.
func (svc *Service) activeAssignment(ctx context.Context, assignmentID, studentID string) (catalog.Assignment, catalog.Enrollment, error) {
	asgmt, err := svc.catalog.GetAssignment(ctx, assignmentID)
	if err != nil {
		return catalog.Assignment{}, catalog.Enrollment{}, errors.Wrap(err, "getting assignment")
	}
	if !asgmt.IsActive {
		return catalog.Assignment{}, catalog.Enrollment{}, core.NewNotFoundError("assignment", assignmentID)
	}
	enr, err := svc.catalog.GetEnrollment(ctx, asgmt.ClassID, studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return catalog.Assignment{}, catalog.Enrollment{}, core.NewNotFoundError("assignment", assignmentID)
		}
		return catalog.Assignment{}, catalog.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	if !enr.IsActive() {
		return catalog.Assignment{}, catalog.Enrollment{}, core.NewNotFoundError("assignment", assignmentID)
	}
	return asgmt, enr, nil
}

// Submit records a student's deliverable. A pending submission may be overwritten; a submission
// being graded or already graded may not.
// When the assignment is AI graded, grading runs right away; if it fails, the pending Submission
// is returned together with the error so the caller can retry with RequestGrading.
func (svc *Service) Submit(ctx context.Context, ns NewSubmission) (Submission, error) {
	ns.FileRef = core.CleanString(ns.FileRef)
	ns.SubmissionURL = core.CleanString(ns.SubmissionURL)
	ns.Notes = core.CleanString(ns.Notes)
	if err := svc.validator.Struct(ns); err != nil {
		return Submission{}, err
	}

	asgmt, _, err := svc.activeAssignment(ctx, ns.AssignmentID, ns.StudentID)
	if err != nil {
		return Submission{}, err
	}

	sub, err := svc.save(ctx, ns)
	if err != nil {
		return Submission{}, err
	}

	if !asgmt.AIGradingEnabled {
		return sub, nil
	}
	graded, err := svc.RequestGrading(ctx, sub.ID)
	if err != nil {
		return sub, errors.Wrap(err, "auto grading")
	}
	return graded, nil
}

func (svc *Service) save(ctx context.Context, ns NewSubmission) (Submission, error) {
	now := svc.nowFunc()
	sub := Submission{
		AssignmentID:   ns.AssignmentID,
		StudentID:      ns.StudentID,
		SubmissionType: ns.submissionType(),
		FileRef:        ns.FileRef,
		SubmissionURL:  ns.SubmissionURL,
		Notes:          ns.Notes,
		Status:         StatusPending,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}

	existing, err := svc.repo.FindSubmission(ctx, ns.AssignmentID, ns.StudentID)
	switch {
	case err == nil:
		if existing.Status != StatusPending {
			return Submission{}, core.NewConflictError("submission is already %s", existing.Status)
		}
		sub.ID = existing.ID
		updated, err := svc.repo.UpdatePendingSubmission(ctx, sub)
		return updated, errors.Wrap(err, "updating submission")

	case core.IsNotFound(err):
		sub.ID = uuid.NewString()
		created, err := svc.repo.CreateSubmission(ctx, sub)
		return created, errors.Wrap(err, "creating submission")

	default:
		return Submission{}, errors.Wrap(err, "finding submission")
	}
}

// RequestGrading asks the oracle to grade a pending submission.
// A submission already grading or graded is returned as is.
// Any failure rolls the submission back to pending and is reported as a *core.GradingOracleError
// when the oracle itself failed.
func (svc *Service) RequestGrading(ctx context.Context, submissionID string) (Submission, error) {
	sub, err := svc.repo.TransitionStatus(ctx, submissionID, StatusPending, StatusGrading, svc.nowFunc())
	if err != nil {
		if core.IsConflict(err) {
			return svc.current(ctx, submissionID)
		}
		return Submission{}, errors.Wrap(err, "starting grading")
	}

	gc, asgmt, err := svc.gradingContext(ctx, sub)
	if err != nil {
		svc.rollback(sub.ID, string(grading.GraderAI), "context")
		return Submission{}, err
	}

	start := time.Now()
	oracleCtx, cancel := context.WithTimeout(ctx, svc.gradingTimeout)
	result, err := svc.oracle.Grade(oracleCtx, gc)
	cancel()
	if err == nil {
		err = grading.CheckResult(result)
	}
	if err != nil {
		var kind string
		var oErr *core.GradingOracleError
		switch {
		case errors.As(err, &oErr):
			kind = oErr.Kind
		case errors.Is(err, context.DeadlineExceeded):
			kind = core.OracleTimeout
			err = &core.GradingOracleError{Kind: kind, Err: err}
		default:
			kind = core.OracleTransport
			err = &core.GradingOracleError{Kind: kind, Err: err}
		}
		svc.logger.Warn("ai grading failed", "submission", sub.ID, "kind", kind, "error", err)
		svc.rollback(sub.ID, string(grading.GraderAI), kind)
		return Submission{}, errors.Wrap(err, "requesting ai grade")
	}
	result.GraderType = grading.GraderAI

	graded, grade, err := svc.record(sub.ID, result, grading.GraderAI)
	if err != nil {
		return Submission{}, err
	}
	svc.metrics.GradingSucceeded(string(grading.GraderAI), time.Since(start))
	svc.notifyGraded(ctx, asgmt, graded, grade)
	return graded, nil
}

// GradeManually records a trainer's grade on a pending submission, through the same
// pending -> grading -> graded transitions as AI grading.
func (svc *Service) GradeManually(ctx context.Context, submissionID string, mg grading.ManualGrade) (Submission, Grade, error) {
	result, err := grading.NewManualResult(svc.validator, mg)
	if err != nil {
		return Submission{}, Grade{}, err
	}

	sub, err := svc.repo.TransitionStatus(ctx, submissionID, StatusPending, StatusGrading, svc.nowFunc())
	if err != nil {
		if core.IsConflict(err) {
			return Submission{}, Grade{}, errors.Wrap(err, "grading submission")
		}
		return Submission{}, Grade{}, errors.Wrap(err, "starting grading")
	}

	graded, grade, err := svc.record(sub.ID, result, grading.GraderManual)
	if err != nil {
		return Submission{}, Grade{}, err
	}
	svc.metrics.GradingSucceeded(string(grading.GraderManual), 0)

	if asgmt, aErr := svc.catalog.GetAssignment(ctx, graded.AssignmentID); aErr == nil {
		svc.notifyGraded(ctx, asgmt, graded, grade)
	}
	return graded, grade, nil
}

// Regrade appends a trainer's grade to an already graded submission; the latest grade wins.
func (svc *Service) Regrade(ctx context.Context, submissionID string, mg grading.ManualGrade) (Grade, error) {
	result, err := grading.NewManualResult(svc.validator, mg)
	if err != nil {
		return Grade{}, err
	}
	grade := gradeFromResult(submissionID, result, svc.nowFunc())
	grade.ID = uuid.NewString()
	grade, err = svc.repo.AppendGrade(ctx, grade)
	if err != nil {
		return Grade{}, errors.Wrap(err, "appending grade")
	}
	return grade, nil
}

// record stores the grade and completes the grading transition, without the caller's context:
// once the oracle answered, its grade must not be lost to a cancelled request.
func (svc *Service) record(submissionID string, result grading.Result, graderType grading.GraderType) (Submission, Grade, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()

	grade := gradeFromResult(submissionID, result, svc.nowFunc())
	grade.ID = uuid.NewString()
	graded, grade, err := svc.repo.RecordGrade(ctx, grade)
	if err != nil {
		svc.logger.Error("recording grade", "submission", submissionID, "error", err)
		svc.rollback(submissionID, string(graderType), "store")
		return Submission{}, Grade{}, errors.Wrap(err, "recording grade")
	}
	return graded, grade, nil
}

// rollback returns a submission stuck in grading to pending on a fresh context.
func (svc *Service) rollback(submissionID, graderType, kind string) {
	svc.metrics.GradingFailed(graderType, kind)

	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()
	if _, err := svc.repo.TransitionStatus(ctx, submissionID, StatusGrading, StatusPending, svc.nowFunc()); err != nil {
		svc.logger.Error("rolling back submission to pending", "submission", submissionID, "error", err)
	}
}

func (svc *Service) current(ctx context.Context, submissionID string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	return sub, errors.Wrap(err, "getting submission")
}

func (svc *Service) gradingContext(ctx context.Context, sub Submission) (grading.Context, catalog.Assignment, error) {
	asgmt, err := svc.catalog.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return grading.Context{}, catalog.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	gc := grading.Context{
		AssignmentTitle: asgmt.Title,
		Instructions:    asgmt.Instructions,
		Rubric:          asgmt.Rubric,
		SubmissionURL:   sub.SubmissionURL,
		FileURL:         sub.FileRef,
		StudentNotes:    sub.Notes,
	}
	if asgmt.ModuleID != "" {
		mod, err := svc.catalog.GetModule(ctx, asgmt.ModuleID)
		if err != nil && !core.IsNotFound(err) {
			return grading.Context{}, catalog.Assignment{}, errors.Wrap(err, "getting module")
		}
		gc.ModuleContext = mod.Title
		if st, ok := mod.Step(asgmt.StepID); ok {
			gc.StepContext = st.Title
		}
	}
	return gc, asgmt, nil
}

func (svc *Service) notifyGraded(ctx context.Context, asgmt catalog.Assignment, sub Submission, grade Grade) {
	enr, err := svc.catalog.GetEnrollment(ctx, asgmt.ClassID, sub.StudentID)
	if err != nil || enr.StudentEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: enr.StudentName, Address: enr.StudentEmail}},
		Subject:      "Your submission has been graded",
		TemplateName: "grade_ready",
		TemplateData: map[string]interface{}{
			"AssignmentTitle": asgmt.Title,
			"Score":           grade.Score,
			"Feedback":        grade.Feedback,
		},
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Detail, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Detail{}, errors.Wrap(err, "getting submission")
	}
	grades, err := svc.repo.QueryGrades(ctx, id)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying grades")
	}
	return Detail{Submission: sub, Grades: grades}, nil
}

func (svc *Service) Find(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	sub, err := svc.repo.FindSubmission(ctx, assignmentID, studentID)
	return sub, errors.Wrap(err, "finding submission")
}

// LatestGrade returns the submission's most recent grade.
func (svc *Service) LatestGrade(ctx context.Context, submissionID string) (Grade, error) {
	grades, err := svc.repo.QueryGrades(ctx, submissionID)
	if err != nil {
		return Grade{}, errors.Wrap(err, "querying grades")
	}
	if len(grades) == 0 {
		return Grade{}, core.NewNotFoundError("grade", submissionID)
	}
	return grades[0], nil
}

// ReleaseStale returns submissions stuck in grading for longer than olderThan to pending.
func (svc *Service) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := svc.repo.QuerySubmissions(ctx, QueryFilter{
		Status:        StatusGrading,
		UpdatedBefore: svc.nowFunc().Add(-olderThan),
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying stale submissions")
	}

	var released int
	for _, sub := range stale {
		_, err := svc.repo.TransitionStatus(ctx, sub.ID, StatusGrading, StatusPending, svc.nowFunc())
		if err != nil {
			if core.IsConflict(err) {
				continue // finished meanwhile
			}
			return released, errors.Wrap(err, "releasing submission")
		}
		released++
	}
	if released > 0 {
		svc.logger.Warn("released stale submissions", "count", released)
	}
	return released, nil
}
