package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/storage"
	testutil "github.com/trezcool/darasa/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)
	svc := &appServices{
		store: &storage.Store{
			DB:           env.DB,
			Catalog:      env.Catalog,
			Progress:     env.Progress,
			Submissions:  env.Submissions,
			Certificates: env.Certificates,
		},
		engine:       env.ProgressEngine(),
		submissions:  env.SubmissionService(testutil.NewFakeOracle(4, "Clean markup")),
		certificates: env.CertificateService(),
	}
	return &commandLine{
		out: out,
		openSQL: func(context.Context) (*sql.DB, error) {
			return nil, nil
		},
		openServices: func(context.Context) (*appServices, error) {
			return svc, nil
		},
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantErrIs  func(error) bool
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(context.Background(), args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else if tt.wantErrIs != nil {
					if !tt.wantErrIs(err) {
						t.Errorf("cli.run() unexpected error kind = %v", err)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" || tt.wantErrIs != nil {
				t.Errorf("cli.run() expected an error")
			}
		})
	}
}

// lastJSON decodes the last JSON document printed by the CLI.
func lastJSON(t *testing.T, out *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	data := make(map[string]interface{})
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &data), out.String())
	return data
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "cohorts", "sql"}},
	}
	runCLITests(t, cli, tests)
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "help flag", args: []string{"progress", "-h"}, wantErr: errHelp},
		{name: "undefined flag", args: []string{"progress", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
		{name: "start-step: missing step", args: []string{"start-step", "-user", "stu-1", "-module", "m1"}, wantErr: errHelp},
		{name: "submit: missing assignment", args: []string{"submit", "-user", "stu-1"}, wantErr: errHelp},
		{name: "roster: no class", args: []string{"roster"}, wantErr: errHelp},
	}
	runCLITests(t, cli, tests)
	assert.Contains(t, out.String(), "Usage: admin [-inmem] COMMAND [OPTIONS]")
}

func Test_commandLine_progress(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "start", args: []string{"start-step", "-user", "stu-1", "-module", "m1", "-step", "s1"}},
		{name: "complete", args: []string{"complete-step", "-user", "stu-1", "-module", "m1", "-step", "s1", "-notes", "done"}},
		{name: "unknown step", args: []string{"start-step", "-user", "stu-1", "-module", "m1", "-step", "s9"}, wantErrIs: core.IsNotFound},
		{name: "unknown module", args: []string{"progress", "-user", "stu-1", "-module", "m9"}, wantErrIs: core.IsNotFound},
	}
	runCLITests(t, cli, tests)

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"admin", "progress", "-user", "stu-1", "-module", "m1"}))
	assert.JSONEq(t, `{
		"module_id": "m1", "total_steps": 2, "completed_steps": 1, "in_progress_steps": 0,
		"completion_percentage": 50, "is_completed": false, "is_started": true
	}`, out.String())

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"admin", "progress", "-user", "stu-1"}))
	data := lastJSON(t, out)
	assert.Equal(t, "stu-1", data["user_id"])
	summary := data["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["completed_steps"])
	assert.EqualValues(t, 3, summary["total_steps"])
}

func Test_commandLine_grading(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	require.NoError(t, cli.run(ctx, []string{"admin", "submit", "-user", "stu-1", "-assignment", "a-ai", "-url", "https://example.com/form"}))
	data := lastJSON(t, out)
	assert.Equal(t, "graded", data["status"])

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"admin", "submit", "-user", "stu-1", "-assignment", "a-manual", "-file", "page.zip"}))
	data = lastJSON(t, out)
	assert.Equal(t, "pending", data["status"])
	manualID := data["id"].(string)

	tests := []cliTest{
		{name: "submit: invalid url", args: []string{"submit", "-user", "stu-2", "-assignment", "a-manual", "-url", "nope"}, wantErrIs: core.IsValidation},
		{name: "submit: unknown assignment", args: []string{"submit", "-user", "stu-1", "-assignment", "a-9", "-url", "https://example.com"}, wantErrIs: core.IsNotFound},
		{name: "grade: unknown submission", args: []string{"grade", "-submission", "nope", "-score", "3", "-feedback", "ok"}, wantErrIs: core.IsNotFound},
		{name: "grade", args: []string{"grade", "-submission", manualID, "-score", "5", "-feedback", "Great", "-grader", "trainer-1"}},
		{name: "regrade", args: []string{"grade", "-submission", manualID, "-score", "4", "-feedback", "Second look", "-regrade"}},
	}
	runCLITests(t, cli, tests)

	data = lastJSON(t, out)
	assert.EqualValues(t, 4, data["score"])
	assert.Equal(t, "admin", data["graded_by"])
}

func Test_commandLine_certificate(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "not eligible", args: []string{"issue-certificate", "-user", "stu-1", "-class", "web-101"}, wantErrIs: core.IsNotEligible},
		{name: "not enrolled", args: []string{"issue-certificate", "-user", "stu-1", "-class", "py-101"}, wantErrIs: core.IsNotFound},
		{name: "unknown code", args: []string{"verify-certificate", "-code", "DRS-NOPE"}, wantErrIs: core.IsNotFound},
	})

	testutil.CompleteSteps(t, cli.svc.engine, "stu-1", "m1", "s1", "s2")
	testutil.CompleteSteps(t, cli.svc.engine, "stu-1", "m2", "s3")
	require.NoError(t, cli.run(ctx, []string{"admin", "submit", "-user", "stu-1", "-assignment", "a-ai", "-url", "https://example.com/form"}))
	testutil.GradeManually(t, cli.svc.submissions, "a-manual", "stu-1", 5)

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"admin", "issue-certificate", "-user", "stu-1", "-class", "web-101"}))
	data := lastJSON(t, out)
	code := data["certificate_code"].(string)
	assert.True(t, strings.HasPrefix(code, "DRS-WEB101-STU1-"), code)
	assert.EqualValues(t, 4.5, data["average_grade"])

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"admin", "verify-certificate", "-code", code}))
	assert.Equal(t, data["id"], lastJSON(t, out)["id"])

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"admin", "roster", "-class", "web-101"}))
	var roster []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &roster))
	require.Len(t, roster, 2)
	assert.Equal(t, "stu-1", roster[0]["student_id"])
	assert.Equal(t, "stu-2", roster[1]["student_id"])
}

func Test_commandLine_importCatalog(t *testing.T) {
	cli, out := setup(t)

	file := filepath.Join(t.TempDir(), "catalog.yml")
	fixture := testutil.Catalog + `
  - id: go-101
    name: Go Basics
    trainer_id: trainer-2
    modules:
      - id: go1
        title: Types
        order_number: 1
        steps:
          - {id: go1-1, title: Structs, order_number: 1}
    enrollments:
      - {student_id: stu-9, student_name: Imani}
`
	require.NoError(t, os.WriteFile(file, []byte(fixture), 0o600))

	runCLITests(t, cli, []cliTest{
		{name: "no file", args: []string{"import-catalog"}, wantErr: errHelp},
		{name: "import", args: []string{"import-catalog", "-file", file}},
	})
	assert.JSONEq(t, `{"classes": 3, "modules": 4, "assignments": 2, "enrollments": 5}`, out.String())

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"admin", "start-step", "-user", "stu-9", "-module", "go1", "-step", "go1-1"}))
	assert.Equal(t, "in_progress", lastJSON(t, out)["status"])
}
