package testutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

// Catalog is the default fixture: web-101 has two modules of 10+20 and 30 minutes,
// an AI graded and a manually graded assignment, two active students and an inactive one.
const Catalog = `
classes:
  - id: web-101
    name: Web Foundations
    trainer_id: trainer-1
    modules:
      - id: m1
        title: HTML
        order_number: 1
        steps:
          - {id: s1, title: Tags, order_number: 1, estimated_minutes: 10}
          - {id: s2, title: Forms, order_number: 2, estimated_minutes: 20}
      - id: m2
        title: CSS
        order_number: 2
        steps:
          - {id: s3, title: Selectors, order_number: 1, estimated_minutes: 30}
    assignments:
      - id: a-ai
        module_id: m1
        step_id: s2
        title: Contact form
        instructions: Build a contact form.
        rubric: Semantics and accessibility.
        ai_grading_enabled: true
      - id: a-manual
        module_id: m2
        title: Styled page
        instructions: Style the contact form.
    enrollments:
      - {student_id: stu-1, student_name: Amani, student_email: amani@darasa.test}
      - {student_id: stu-2, student_name: Baraka}
      - {student_id: stu-3, student_name: Chausiku, status: inactive}
  - id: py-101
    name: Python Basics
    trainer_id: trainer-2
    modules:
      - id: py1
        title: Syntax
        order_number: 1
        steps:
          - {id: py1-1, title: Variables, order_number: 1}
    enrollments:
      - {student_id: stu-2, student_name: Baraka}
`

var (
	// T0 is the default fixture time.
	T0 = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
)

func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Darasa",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://darasa.test",
		DefaultFromEmail: "Darasa <noreply@darasa.test>",
		Server: core.ServerConfig{
			Address:         ":0",
			ShutdownTimeout: time.Second,
			DisableReqLogs:  true,
		},
		Grading: core.GradingConfig{
			Backend:       "disabled",
			Timeout:       2 * time.Second,
			StaleAfter:    10 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

func NewValidator() *core.Validator {
	return core.NewValidator(validator.New(), core.NewTranslator())
}

// Env bundles in-memory repositories and ambient services for tests.
type Env struct {
	Conf         *core.Config
	Logger       core.Logger
	Validator    *core.Validator
	Mail         *emailsvc.ConsoleServiceMock
	Metrics      core.Metrics
	Clock        *Clock
	DB           *inmemdb.DB
	Catalog      catalog.Repository
	Progress     progress.Repository
	Submissions  submission.Repository
	Certificates certificate.Repository
}

// NewEnv returns an Env seeded with the default Catalog.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := inmemdb.New()
	conf := NewConfig()
	logger := logsvc.NewNop()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	env := &Env{
		Conf:         conf,
		Logger:       logger,
		Validator:    NewValidator(),
		Mail:         emailsvc.NewConsoleServiceMock(conf, logger),
		Metrics:      core.NewNopMetrics(),
		Clock:        NewClock(T0),
		DB:           db,
		Catalog:      inmemdb.NewCatalogRepository(db),
		Progress:     inmemdb.NewProgressRepository(db),
		Submissions:  inmemdb.NewSubmissionRepository(db),
		Certificates: inmemdb.NewCertificateRepository(db),
	}
	SeedCatalog(t, env.Catalog, Catalog)
	return env
}

func (env *Env) ProgressEngine() *progress.Engine {
	e := progress.NewEngine(env.Progress, env.Catalog, env.Metrics)
	e.SetClock(env.Clock.Now)
	return e
}

func (env *Env) SubmissionService(oracle grading.Oracle) *submission.Service {
	svc := submission.NewService(env.Submissions, env.Catalog, oracle, env.Validator, env.Mail, env.Logger, env.Metrics, env.Conf)
	svc.SetClock(env.Clock.Now)
	return svc
}

func (env *Env) CertificateService() *certificate.Service {
	svc := certificate.NewService(env.Certificates, env.Catalog, env.Progress, env.Submissions, env.Mail, env.Logger, env.Metrics)
	svc.SetClock(env.Clock.Now)
	return svc
}

// SeedCatalog imports a YAML catalog fixture.
func SeedCatalog(t *testing.T, repo catalog.Repository, fixture string) catalog.Catalog {
	t.Helper()
	c, err := catalog.LoadYAML(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	if err := repo.Import(context.Background(), c); err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	return c
}

// CompleteSteps completes the given steps of a module.
func CompleteSteps(t *testing.T, e *progress.Engine, userID, moduleID string, stepIDs ...string) {
	t.Helper()
	for _, id := range stepIDs {
		if _, err := e.CompleteStep(context.Background(), moduleID, id, userID, ""); err != nil {
			t.Fatalf("CompleteSteps() failed: %v", err)
		}
	}
}

// GradeManually submits and grades an assignment on behalf of a trainer.
// A failed automatic grading leaves the submission pending for the trainer.
func GradeManually(t *testing.T, svc *submission.Service, assignmentID, studentID string, score int) submission.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := svc.Submit(ctx, submission.NewSubmission{
		AssignmentID:  assignmentID,
		StudentID:     studentID,
		SubmissionURL: "https://example.com/" + studentID + "/" + assignmentID,
	})
	if err != nil && !(core.IsGradingOracle(err) && sub.ID != "") {
		t.Fatalf("GradeManually() failed: %v", err)
	}
	sub, _, err = svc.GradeManually(ctx, sub.ID, grading.ManualGrade{Score: score, Feedback: "Good work", GraderID: "trainer-1"})
	if err != nil {
		t.Fatalf("GradeManually() failed: %v", err)
	}
	return sub
}

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakeOracle answers with a scripted result or error, after an optional delay or until released.
type FakeOracle struct {
	Result  grading.Result
	Err     error
	Delay   time.Duration
	Release chan struct{} // when set, Grade blocks until it is closed

	calls int32
	mu    sync.Mutex
	last  grading.Context
}

var _ grading.Oracle = (*FakeOracle)(nil) // interface compliance check

func NewFakeOracle(score int, feedback string) *FakeOracle {
	return &FakeOracle{Result: grading.Result{Score: score, Feedback: feedback}}
}

func (o *FakeOracle) Grade(ctx context.Context, gc grading.Context) (grading.Result, error) {
	atomic.AddInt32(&o.calls, 1)
	o.mu.Lock()
	o.last = gc
	o.mu.Unlock()

	if o.Release != nil {
		select {
		case <-o.Release:
		case <-ctx.Done():
			return grading.Result{}, &core.GradingOracleError{Kind: core.OracleTimeout, Err: ctx.Err()}
		}
	}
	if o.Delay > 0 {
		select {
		case <-time.After(o.Delay):
		case <-ctx.Done():
			return grading.Result{}, &core.GradingOracleError{Kind: core.OracleTimeout, Err: ctx.Err()}
		}
	}
	if o.Err != nil {
		return grading.Result{}, o.Err
	}
	return o.Result, nil
}

func (o *FakeOracle) Calls() int {
	return int(atomic.LoadInt32(&o.calls))
}

func (o *FakeOracle) LastContext() grading.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}
