package catalog

import "context"

// Repository gives read access to the class catalog.
// Lookups of absent records fail with a *core.NotFoundError.
type Repository interface {
	GetClass(ctx context.Context, id string) (Class, error)
	// GetModule returns the module with its steps sorted by order_number.
	GetModule(ctx context.Context, id string) (Module, error)
	GetStep(ctx context.Context, id string) (Step, error)
	// QueryClassModules returns the active modules of a class, ordered, with their steps.
	QueryClassModules(ctx context.Context, classID string) ([]Module, error)
	// QueryEnrolledModules returns the active modules of every class the student is actively enrolled in.
	QueryEnrolledModules(ctx context.Context, studentID string) ([]Module, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	// QueryClassAssignments returns the active assignments of a class.
	QueryClassAssignments(ctx context.Context, classID string) ([]Assignment, error)
	GetEnrollment(ctx context.Context, classID, studentID string) (Enrollment, error)
	// QueryClassEnrollments returns the active enrollments of a class ordered by student name.
	QueryClassEnrollments(ctx context.Context, classID string) ([]Enrollment, error)
	// Import upserts every record of the catalog.
	Import(ctx context.Context, c Catalog) error
}
