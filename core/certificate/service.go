package certificate

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
)

const rosterConcurrency = 8

type Service struct {
	repo        Repository
	catalog     catalog.Repository
	progress    progress.Repository
	submissions submission.Repository
	mailSvc     core.EmailService
	logger      core.Logger
	metrics     core.Metrics
	nowFunc     func() time.Time // mockable
}

func NewService(
	repo Repository,
	catalogRepo catalog.Repository,
	progressRepo progress.Repository,
	submissionRepo submission.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	metrics core.Metrics,
) *Service {
	return &Service{
		repo:        repo,
		catalog:     catalogRepo,
		progress:    progressRepo,
		submissions: submissionRepo,
		mailSvc:     mailSvc,
		logger:      logger,
		metrics:     metrics,
		nowFunc:     core.NowUTC,
	}
}

// SetClock replaces the service's clock.
func (svc *Service) SetClock(now func() time.Time) {
	svc.nowFunc = now
}

func (svc *Service) activeEnrollment(ctx context.Context, studentID, classID string) (catalog.Enrollment, error) {
	enr, err := svc.catalog.GetEnrollment(ctx, classID, studentID)
	if err != nil {
		return catalog.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	if !enr.IsActive() {
		return catalog.Enrollment{}, core.NewNotFoundError("enrollment", classID)
	}
	return enr, nil
}

// ClassProgress computes a student's live progress in a class they are actively enrolled in.
func (svc *Service) ClassProgress(ctx context.Context, studentID, classID string) (ClassProgress, error) {
	if _, err := svc.activeEnrollment(ctx, studentID, classID); err != nil {
		return ClassProgress{}, err
	}
	modules, err := svc.catalog.QueryClassModules(ctx, classID)
	if err != nil {
		return ClassProgress{}, errors.Wrap(err, "querying class modules")
	}
	assignments, err := svc.catalog.QueryClassAssignments(ctx, classID)
	if err != nil {
		return ClassProgress{}, errors.Wrap(err, "querying class assignments")
	}
	return svc.classProgress(ctx, studentID, classID, modules, assignments)
}

func (svc *Service) classProgress(
	ctx context.Context,
	studentID, classID string,
	modules []catalog.Module,
	assignments []catalog.Assignment,
) (ClassProgress, error) {
	rows, err := svc.progress.QueryStepProgress(ctx, studentID)
	if err != nil {
		return ClassProgress{}, errors.Wrap(err, "querying step progress")
	}

	scores := make(map[string]int)
	if len(assignments) > 0 {
		ids := make([]string, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.ID)
		}
		graded, err := svc.submissions.QuerySubmissions(ctx, submission.QueryFilter{
			StudentID:     studentID,
			AssignmentIDs: ids,
			Status:        submission.StatusGraded,
		})
		if err != nil {
			return ClassProgress{}, errors.Wrap(err, "querying graded submissions")
		}
		for _, sub := range graded {
			grades, err := svc.submissions.QueryGrades(ctx, sub.ID)
			if err != nil {
				return ClassProgress{}, errors.Wrap(err, "querying grades")
			}
			if len(grades) > 0 {
				scores[sub.AssignmentID] = grades[0].Score
			}
		}
	}

	return ComputeClassProgress(classID, studentID, modules, progress.NewIndex(rows), assignments, scores), nil
}

// IssueOrFetch returns the student's certificate for the class, minting it from the snapshot
// when none exists yet. An existing certificate is never recomputed.
func (svc *Service) IssueOrFetch(
	ctx context.Context,
	studentID, classID string,
	snapshot ClassProgress,
	averageGrade float64,
) (Certificate, bool, error) {
	cert, err := svc.repo.GetCertificate(ctx, studentID, classID)
	if err == nil {
		return cert, false, nil
	}
	if !core.IsNotFound(err) {
		return Certificate{}, false, errors.Wrap(err, "getting certificate")
	}

	if !IsEligible(snapshot) {
		return Certificate{}, false, core.NewNotEligibleError("class requirements are not completed yet")
	}

	issuedAt := svc.nowFunc()
	cert = Certificate{
		ID:                uuid.NewString(),
		StudentID:         studentID,
		ClassID:           classID,
		CompletionDate:    now.With(issuedAt).BeginningOfDay(),
		ModulesCompleted:  snapshot.CompletedModules,
		TotalModules:      snapshot.TotalModules,
		AssignmentsGraded: snapshot.GradedAssignments,
		TotalAssignments:  snapshot.TotalAssignments,
		AverageGrade:      averageGrade,
		Code:              NewCode(classID, studentID, issuedAt),
		CreatedAt:         issuedAt,
	}
	if class, err := svc.catalog.GetClass(ctx, classID); err == nil {
		cert.ClassName = class.Name
	}
	if enr, err := svc.catalog.GetEnrollment(ctx, classID, studentID); err == nil {
		cert.StudentName = enr.StudentName
	}

	created, err := svc.repo.CreateCertificate(ctx, cert)
	if err != nil {
		if core.IsConflict(err) {
			// issued concurrently
			existing, gErr := svc.repo.GetCertificate(ctx, studentID, classID)
			if gErr == nil {
				return existing, false, nil
			}
		}
		return Certificate{}, false, errors.Wrap(err, "creating certificate")
	}
	svc.metrics.CertificateIssued()
	return created, true, nil
}

// Issue computes the student's current class progress and issues (or fetches) their certificate.
// An issued certificate is returned unchanged, even once the enrollment is no longer active.
func (svc *Service) Issue(ctx context.Context, studentID, classID string) (Certificate, error) {
	existing, err := svc.repo.GetCertificate(ctx, studentID, classID)
	if err == nil {
		return existing, nil
	}
	if !core.IsNotFound(err) {
		return Certificate{}, errors.Wrap(err, "getting certificate")
	}

	cp, err := svc.ClassProgress(ctx, studentID, classID)
	if err != nil {
		return Certificate{}, err
	}
	cert, created, err := svc.IssueOrFetch(ctx, studentID, classID, cp, cp.AverageGrade)
	if err != nil {
		return Certificate{}, err
	}
	if created {
		svc.notifyIssued(ctx, cert)
	}
	return cert, nil
}

func (svc *Service) notifyIssued(ctx context.Context, cert Certificate) {
	enr, err := svc.catalog.GetEnrollment(ctx, cert.ClassID, cert.StudentID)
	if err != nil || enr.StudentEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: enr.StudentName, Address: enr.StudentEmail}},
		Subject:      "Your certificate of completion",
		TemplateName: "certificate_issued",
		TemplateData: map[string]interface{}{
			"StudentName":      cert.StudentName,
			"ClassName":        cert.ClassName,
			"Code":             cert.Code,
			"ModulesCompleted": cert.ModulesCompleted,
			"TotalModules":     cert.TotalModules,
			"AverageGrade":     cert.AverageGrade,
		},
	})
}

func (svc *Service) Get(ctx context.Context, studentID, classID string) (Certificate, error) {
	cert, err := svc.repo.GetCertificate(ctx, studentID, classID)
	return cert, errors.Wrap(err, "getting certificate")
}

// Verify looks a certificate up by its public code.
func (svc *Service) Verify(ctx context.Context, code string) (Certificate, error) {
	cert, err := svc.repo.GetCertificateByCode(ctx, core.CleanString(code))
	return cert, errors.Wrap(err, "getting certificate by code")
}

// RosterProgress computes the class progress of every actively enrolled student, in roster order.
func (svc *Service) RosterProgress(ctx context.Context, classID string) ([]RosterEntry, error) {
	if _, err := svc.catalog.GetClass(ctx, classID); err != nil {
		return nil, errors.Wrap(err, "getting class")
	}
	enrollments, err := svc.catalog.QueryClassEnrollments(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	modules, err := svc.catalog.QueryClassModules(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class modules")
	}
	assignments, err := svc.catalog.QueryClassAssignments(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class assignments")
	}

	entries := make([]RosterEntry, len(enrollments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterConcurrency)
	for i, enr := range enrollments {
		i, enr := i, enr
		g.Go(func() error {
			cp, err := svc.classProgress(gctx, enr.StudentID, classID, modules, assignments)
			if err != nil {
				return errors.Wrapf(err, "computing progress of %s", enr.StudentID)
			}
			entries[i] = RosterEntry{StudentID: enr.StudentID, StudentName: enr.StudentName, Progress: cp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
