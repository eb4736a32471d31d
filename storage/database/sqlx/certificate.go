package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/certificate"
)

type certificateRow struct {
	ID                string    `db:"id"`
	StudentID         string    `db:"student_id"`
	StudentName       string    `db:"student_name"`
	ClassID           string    `db:"class_id"`
	ClassName         string    `db:"class_name"`
	CompletionDate    time.Time `db:"completion_date"`
	ModulesCompleted  int       `db:"modules_completed"`
	TotalModules      int       `db:"total_modules"`
	AssignmentsGraded int       `db:"assignments_graded"`
	TotalAssignments  int       `db:"total_assignments"`
	AverageGrade      float64   `db:"average_grade"`
	Code              string    `db:"certificate_code"`
	CreatedAt         time.Time `db:"created_at"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	return certificate.Certificate{
		ID:                r.ID,
		StudentID:         r.StudentID,
		StudentName:       r.StudentName,
		ClassID:           r.ClassID,
		ClassName:         r.ClassName,
		CompletionDate:    r.CompletionDate.UTC(),
		ModulesCompleted:  r.ModulesCompleted,
		TotalModules:      r.TotalModules,
		AssignmentsGraded: r.AssignmentsGraded,
		TotalAssignments:  r.TotalAssignments,
		AverageGrade:      r.AverageGrade,
		Code:              r.Code,
		CreatedAt:         r.CreatedAt.UTC(),
	}
}

const certificateColumns = "id, student_id, student_name, class_id, class_name, completion_date, modules_completed, " +
	"total_modules, assignments_graded, total_assignments, average_grade, certificate_code, created_at"

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, studentID, classID string) (certificate.Certificate, error) {
	var row certificateRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+certificateColumns+" FROM certificates WHERE student_id = $1 AND class_id = $2", studentID, classID)
	if err != nil {
		return certificate.Certificate{}, mapError(err, "certificate", classID)
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) GetCertificateByCode(ctx context.Context, code string) (certificate.Certificate, error) {
	var row certificateRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+certificateColumns+" FROM certificates WHERE certificate_code = $1", code)
	if err != nil {
		return certificate.Certificate{}, mapError(err, "certificate", code)
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	row := certificateRow{
		ID:                c.ID,
		StudentID:         c.StudentID,
		StudentName:       c.StudentName,
		ClassID:           c.ClassID,
		ClassName:         c.ClassName,
		CompletionDate:    c.CompletionDate,
		ModulesCompleted:  c.ModulesCompleted,
		TotalModules:      c.TotalModules,
		AssignmentsGraded: c.AssignmentsGraded,
		TotalAssignments:  c.TotalAssignments,
		AverageGrade:      c.AverageGrade,
		Code:              c.Code,
		CreatedAt:         c.CreatedAt,
	}
	q, args, err := repo.db.BindNamed(`
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES (:id, :student_id, :student_name, :class_id, :class_name, :completion_date, :modules_completed,
			:total_modules, :assignments_graded, :total_assignments, :average_grade, :certificate_code, :created_at)
		RETURNING `+certificateColumns, row)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "binding certificate")
	}
	var out certificateRow
	if err := repo.db.GetContext(ctx, &out, q, args...); err != nil {
		return certificate.Certificate{}, mapError(err, "certificate", c.ClassID)
	}
	return out.toCertificate(), nil
}
