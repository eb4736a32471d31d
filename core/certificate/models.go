package certificate

import (
	"context"
	"time"
)

type (
	Repository interface {
		// GetCertificate fails with a *core.NotFoundError when none was issued for (student, class).
		GetCertificate(ctx context.Context, studentID, classID string) (Certificate, error)
		GetCertificateByCode(ctx context.Context, code string) (Certificate, error)
		// CreateCertificate fails with a *core.ConflictError when (student, class) or the code is taken.
		CreateCertificate(ctx context.Context, c Certificate) (Certificate, error)
	}

	// Certificate is an immutable snapshot of a student's achievements in a class at award time.
	Certificate struct {
		ID                string    `json:"id"`
		StudentID         string    `json:"student_id"`
		StudentName       string    `json:"student_name"`
		ClassID           string    `json:"class_id"`
		ClassName         string    `json:"class_name"`
		CompletionDate    time.Time `json:"completion_date"`
		ModulesCompleted  int       `json:"modules_completed"`
		TotalModules      int       `json:"total_modules"`
		AssignmentsGraded int       `json:"assignments_graded"`
		TotalAssignments  int       `json:"total_assignments"`
		AverageGrade      float64   `json:"average_grade"`
		Code              string    `json:"certificate_code"`
		CreatedAt         time.Time `json:"created_at"`
	}

	ClassProgress struct {
		ClassID              string  `json:"class_id"`
		StudentID            string  `json:"student_id"`
		TotalModules         int     `json:"total_modules"`
		CompletedModules     int     `json:"completed_modules"`
		TotalAssignments     int     `json:"total_assignments"`
		GradedAssignments    int     `json:"graded_assignments"`
		CompletionPercentage int     `json:"completion_percentage"`
		AverageGrade         float64 `json:"average_grade"`
		CertificateEligible  bool    `json:"certificate_eligible"`
	}

	// RosterEntry is a student's standing in a class roster report.
	RosterEntry struct {
		StudentID   string        `json:"student_id"`
		StudentName string        `json:"student_name"`
		Progress    ClassProgress `json:"progress"`
	}
)
