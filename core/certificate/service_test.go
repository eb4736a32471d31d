package certificate_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jinzhu/now"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/grading"
	testutil "github.com/trezcool/darasa/tests"
)

// offlineOracle leaves every submission to the trainers.
func offlineOracle() *testutil.FakeOracle {
	return &testutil.FakeOracle{Err: errors.New("offline")}
}

// completeClass completes every web-101 step and grades both assignments.
func completeClass(t *testing.T, env *testutil.Env, studentID string, scores ...int) {
	t.Helper()
	e := env.ProgressEngine()
	testutil.CompleteSteps(t, e, studentID, "m1", "s1", "s2")
	testutil.CompleteSteps(t, e, studentID, "m2", "s3")
	subs := env.SubmissionService(offlineOracle())
	testutil.GradeManually(t, subs, "a-ai", studentID, scores[0])
	testutil.GradeManually(t, subs, "a-manual", studentID, scores[1])
}

func TestService_ClassProgress(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.CertificateService()
	ctx := context.Background()

	cp, err := svc.ClassProgress(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	assert.Equal(t, certificate.ClassProgress{ClassID: "web-101", StudentID: "stu-1", TotalModules: 2, TotalAssignments: 2}, cp)

	testutil.CompleteSteps(t, env.ProgressEngine(), "stu-1", "m1", "s1")
	cp, err = svc.ClassProgress(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	assert.Equal(t, 33, cp.CompletionPercentage)

	_, err = svc.ClassProgress(ctx, "stu-3", "web-101")
	assert.True(t, core.IsNotFound(err), "inactive enrollment")
	_, err = svc.ClassProgress(ctx, "stu-1", "py-101")
	assert.True(t, core.IsNotFound(err), "not enrolled")
}

func TestService_Issue(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.CertificateService()
	ctx := context.Background()

	_, err := svc.Issue(ctx, "stu-1", "web-101")
	if !core.IsNotEligible(err) {
		t.Fatalf("Issue() error = %v; want NotEligibleError", err)
	}

	completeClass(t, env, "stu-1", 4, 5)
	mailsBefore := len(env.Mail.SentMessages())

	cert, err := svc.Issue(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cert.Code, "DRS-WEB101-STU1-"), cert.Code)
	assert.Equal(t, "Amani", cert.StudentName)
	assert.Equal(t, "Web Foundations", cert.ClassName)
	assert.Equal(t, now.With(testutil.T0).BeginningOfDay(), cert.CompletionDate)
	assert.Equal(t, 2, cert.ModulesCompleted)
	assert.Equal(t, 2, cert.TotalModules)
	assert.Equal(t, 2, cert.AssignmentsGraded)
	assert.Equal(t, 4.5, cert.AverageGrade)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, mailsBefore+1)
	assert.Contains(t, sent[len(sent)-1].TextContent, cert.Code)

	got, err := svc.Get(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	assert.Equal(t, cert, got)

	verified, err := svc.Verify(ctx, " "+cert.Code+" ")
	require.NoError(t, err)
	assert.Equal(t, cert.ID, verified.ID)
	_, err = svc.Verify(ctx, "DRS-NOPE")
	assert.True(t, core.IsNotFound(err))
}

func TestService_IssueOrFetch_isStable(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.CertificateService()
	ctx := context.Background()

	completeClass(t, env, "stu-1", 4, 5)
	cp, err := svc.ClassProgress(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	require.True(t, cp.CertificateEligible)

	first, created, err := svc.IssueOrFetch(ctx, "stu-1", "web-101", cp, cp.AverageGrade)
	require.NoError(t, err)
	assert.True(t, created)

	// progress changes after issuance
	env.Clock.Advance(48 * time.Hour)
	subs := env.SubmissionService(offlineOracle())
	sub, err := subs.Find(ctx, "a-manual", "stu-1")
	require.NoError(t, err)
	_, err = subs.Regrade(ctx, sub.ID, grading.ManualGrade{Score: 1, Feedback: "Redo it"})
	require.NoError(t, err)
	cp2, err := svc.ClassProgress(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	assert.Equal(t, 2.5, cp2.AverageGrade)

	second, created, err := svc.IssueOrFetch(ctx, "stu-1", "web-101", cp2, cp2.AverageGrade)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first, second)

	// even an ineligible snapshot fetches the issued certificate
	third, _, err := svc.IssueOrFetch(ctx, "stu-1", "web-101", certificate.ClassProgress{}, 0)
	require.NoError(t, err)
	assert.Equal(t, first.Code, third.Code)
}

func TestService_Issue_afterDeactivation(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.CertificateService()
	ctx := context.Background()

	completeClass(t, env, "stu-1", 4, 5)
	issued, err := svc.Issue(ctx, "stu-1", "web-101")
	require.NoError(t, err)

	inactive := strings.Replace(testutil.Catalog,
		"{student_id: stu-1, student_name: Amani, student_email: amani@darasa.test}",
		"{student_id: stu-1, student_name: Amani, student_email: amani@darasa.test, status: inactive}", 1)
	require.NotEqual(t, testutil.Catalog, inactive)
	testutil.SeedCatalog(t, env.Catalog, inactive)

	_, err = svc.ClassProgress(ctx, "stu-1", "web-101")
	require.True(t, core.IsNotFound(err), "enrollment is inactive")

	mailsBefore := len(env.Mail.SentMessages())
	got, err := svc.Issue(ctx, "stu-1", "web-101")
	require.NoError(t, err)
	assert.Equal(t, issued, got)
	assert.Len(t, env.Mail.SentMessages(), mailsBefore)

	// without a certificate, an inactive enrollment is still not found
	_, err = svc.Issue(ctx, "stu-3", "web-101")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Issue_noAssignments(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.CertificateService()
	ctx := context.Background()

	testutil.CompleteSteps(t, env.ProgressEngine(), "stu-2", "py1", "py1-1")
	cp, err := svc.ClassProgress(ctx, "stu-2", "py-101")
	require.NoError(t, err)
	assert.Equal(t, cp.TotalModules, cp.CompletedModules)
	assert.False(t, cp.CertificateEligible)

	_, err = svc.Issue(ctx, "stu-2", "py-101")
	assert.True(t, core.IsNotEligible(err), "error = %v", err)
}

func TestService_RosterProgress(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.CertificateService()
	ctx := context.Background()

	completeClass(t, env, "stu-2", 3, 3)

	roster, err := svc.RosterProgress(ctx, "web-101")
	require.NoError(t, err)
	require.Len(t, roster, 2, "inactive enrollments are left out")
	assert.Equal(t, "stu-1", roster[0].StudentID)
	assert.Equal(t, 0, roster[0].Progress.CompletionPercentage)
	assert.Equal(t, "stu-2", roster[1].StudentID)
	assert.Equal(t, "Baraka", roster[1].StudentName)
	assert.True(t, roster[1].Progress.CertificateEligible)
	assert.Equal(t, 3.0, roster[1].Progress.AverageGrade)

	_, err = svc.RosterProgress(ctx, "nope")
	assert.True(t, core.IsNotFound(err))
}
