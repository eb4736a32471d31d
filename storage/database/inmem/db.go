package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
)

type (
	catalogTables struct {
		mutex       sync.RWMutex
		classes     map[string]catalog.Class
		modules     map[string]catalog.Module // steps excluded
		steps       map[string]catalog.Step
		assignments map[string]catalog.Assignment
		enrollments map[string]catalog.Enrollment // {classID/studentID: Enrollment}
	}

	progressTable struct {
		mutex sync.RWMutex
		table map[string]progress.StepProgress // {userID/stepID: StepProgress}
	}

	// submissions and grades share a lock so that grading transitions are atomic
	submissionTables struct {
		mutex       sync.RWMutex
		submissions map[string]submission.Submission
		grades      map[string][]submission.Grade // {submissionID: grades, oldest first}
	}

	certificateTable struct {
		mutex sync.RWMutex
		table map[string]certificate.Certificate // {studentID/classID: Certificate}
	}

	// DB is a process-local store implementing every repository.
	DB struct {
		catalog      *catalogTables
		progress     *progressTable
		submission   *submissionTables
		certificates *certificateTable
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

func New() *DB {
	return &DB{
		catalog: &catalogTables{
			classes:     make(map[string]catalog.Class),
			modules:     make(map[string]catalog.Module),
			steps:       make(map[string]catalog.Step),
			assignments: make(map[string]catalog.Assignment),
			enrollments: make(map[string]catalog.Enrollment),
		},
		progress:   &progressTable{table: make(map[string]progress.StepProgress)},
		submission: &submissionTables{submissions: make(map[string]submission.Submission), grades: make(map[string][]submission.Grade)},
		certificates: &certificateTable{
			table: make(map[string]certificate.Certificate),
		},
	}
}

func (db *DB) PingContext(context.Context) error { return nil }
func (db *DB) Close() error                      { return nil }

func key(a, b string) string {
	return a + "/" + b
}
