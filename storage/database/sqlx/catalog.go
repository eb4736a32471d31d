package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/catalog"
)

type (
	classRow struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		TrainerID string `db:"trainer_id"`
		IsActive  bool   `db:"is_active"`
	}

	moduleRow struct {
		ID          string `db:"id"`
		ClassID     string `db:"class_id"`
		Title       string `db:"title"`
		Description string `db:"description"`
		OrderNumber int    `db:"order_number"`
		IsActive    bool   `db:"is_active"`
	}

	stepRow struct {
		ID               string   `db:"id"`
		ModuleID         string   `db:"module_id"`
		Title            string   `db:"title"`
		OrderNumber      int      `db:"order_number"`
		EstimatedMinutes null.Int `db:"estimated_minutes"`
	}

	assignmentRow struct {
		ID               string      `db:"id"`
		ClassID          string      `db:"class_id"`
		ModuleID         null.String `db:"module_id"`
		StepID           null.String `db:"step_id"`
		Title            string      `db:"title"`
		Instructions     string      `db:"instructions"`
		Rubric           null.String `db:"rubric"`
		AIGradingEnabled bool        `db:"ai_grading_enabled"`
		IsActive         bool        `db:"is_active"`
	}

	enrollmentRow struct {
		ClassID      string `db:"class_id"`
		StudentID    string `db:"student_id"`
		StudentName  string `db:"student_name"`
		StudentEmail string `db:"student_email"`
		Status       string `db:"status"`
	}
)

func (r classRow) toClass() catalog.Class {
	return catalog.Class{ID: r.ID, Name: r.Name, TrainerID: r.TrainerID, IsActive: r.IsActive}
}

func (r moduleRow) toModule() catalog.Module {
	return catalog.Module{
		ID:          r.ID,
		ClassID:     r.ClassID,
		Title:       r.Title,
		Description: r.Description,
		OrderNumber: r.OrderNumber,
		IsActive:    r.IsActive,
		Steps:       []catalog.Step{},
	}
}

func (r stepRow) toStep() catalog.Step {
	return catalog.Step{
		ID:               r.ID,
		ModuleID:         r.ModuleID,
		Title:            r.Title,
		OrderNumber:      r.OrderNumber,
		EstimatedMinutes: r.EstimatedMinutes.Int,
	}
}

func (r assignmentRow) toAssignment() catalog.Assignment {
	return catalog.Assignment{
		ID:               r.ID,
		ClassID:          r.ClassID,
		ModuleID:         r.ModuleID.String,
		StepID:           r.StepID.String,
		Title:            r.Title,
		Instructions:     r.Instructions,
		Rubric:           r.Rubric.String,
		AIGradingEnabled: r.AIGradingEnabled,
		IsActive:         r.IsActive,
	}
}

func (r enrollmentRow) toEnrollment() catalog.Enrollment {
	status, err := catalog.ParseEnrollmentStatus(r.Status)
	if err != nil {
		status = catalog.EnrollmentInactive
	}
	return catalog.Enrollment{
		ClassID:      r.ClassID,
		StudentID:    r.StudentID,
		StudentName:  r.StudentName,
		StudentEmail: r.StudentEmail,
		Status:       status,
	}
}

const (
	classColumns      = "id, name, trainer_id, is_active"
	moduleColumns     = "id, class_id, title, description, order_number, is_active"
	stepColumns       = "id, module_id, title, order_number, estimated_minutes"
	assignmentColumns = "id, class_id, module_id, step_id, title, instructions, rubric, ai_grading_enabled, is_active"
	enrollmentColumns = "class_id, student_id, student_name, student_email, status"
)

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) GetClass(ctx context.Context, id string) (catalog.Class, error) {
	var row classRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+classColumns+" FROM classes WHERE id = $1", id)
	if err != nil {
		return catalog.Class{}, mapError(err, "class", id)
	}
	return row.toClass(), nil
}

// withSteps loads the steps of the given modules, in order.
func (repo *catalogRepository) withSteps(ctx context.Context, rows []moduleRow) ([]catalog.Module, error) {
	modules := make([]catalog.Module, 0, len(rows))
	if len(rows) == 0 {
		return modules, nil
	}
	ids := make([]string, 0, len(rows))
	pos := make(map[string]int, len(rows))
	for i, r := range rows {
		modules = append(modules, r.toModule())
		ids = append(ids, r.ID)
		pos[r.ID] = i
	}

	q, args, err := sqlx.In("SELECT "+stepColumns+" FROM steps WHERE module_id IN (?) ORDER BY order_number, id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building steps query")
	}
	var steps []stepRow
	if err := repo.db.SelectContext(ctx, &steps, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting steps")
	}
	for _, s := range steps {
		i := pos[s.ModuleID]
		modules[i].Steps = append(modules[i].Steps, s.toStep())
	}
	return modules, nil
}

func (repo *catalogRepository) GetModule(ctx context.Context, id string) (catalog.Module, error) {
	var row moduleRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+moduleColumns+" FROM modules WHERE id = $1", id)
	if err != nil {
		return catalog.Module{}, mapError(err, "module", id)
	}
	modules, err := repo.withSteps(ctx, []moduleRow{row})
	if err != nil {
		return catalog.Module{}, err
	}
	return modules[0], nil
}

func (repo *catalogRepository) GetStep(ctx context.Context, id string) (catalog.Step, error) {
	var row stepRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+stepColumns+" FROM steps WHERE id = $1", id)
	if err != nil {
		return catalog.Step{}, mapError(err, "step", id)
	}
	return row.toStep(), nil
}

func (repo *catalogRepository) QueryClassModules(ctx context.Context, classID string) ([]catalog.Module, error) {
	var rows []moduleRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+moduleColumns+" FROM modules WHERE class_id = $1 AND is_active ORDER BY order_number, id", classID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}
	return repo.withSteps(ctx, rows)
}

func (repo *catalogRepository) QueryEnrolledModules(ctx context.Context, studentID string) ([]catalog.Module, error) {
	var rows []moduleRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT m.id, m.class_id, m.title, m.description, m.order_number, m.is_active
		FROM modules m
		JOIN enrollments e ON e.class_id = m.class_id
		WHERE e.student_id = $1 AND e.status = 'active' AND m.is_active
		ORDER BY m.class_id, m.order_number, m.id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrolled modules")
	}
	return repo.withSteps(ctx, rows)
}

func (repo *catalogRepository) GetAssignment(ctx context.Context, id string) (catalog.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+assignmentColumns+" FROM assignments WHERE id = $1", id)
	if err != nil {
		return catalog.Assignment{}, mapError(err, "assignment", id)
	}
	return row.toAssignment(), nil
}

func (repo *catalogRepository) QueryClassAssignments(ctx context.Context, classID string) ([]catalog.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+assignmentColumns+" FROM assignments WHERE class_id = $1 AND is_active ORDER BY id", classID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	assignments := make([]catalog.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.toAssignment())
	}
	return assignments, nil
}

func (repo *catalogRepository) GetEnrollment(ctx context.Context, classID, studentID string) (catalog.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE class_id = $1 AND student_id = $2", classID, studentID)
	if err != nil {
		return catalog.Enrollment{}, mapError(err, "enrollment", classID)
	}
	return row.toEnrollment(), nil
}

func (repo *catalogRepository) QueryClassEnrollments(ctx context.Context, classID string) ([]catalog.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE class_id = $1 AND status = 'active' ORDER BY student_name, student_id",
		classID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]catalog.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.toEnrollment())
	}
	return enrollments, nil
}

const (
	upsertClass = `
		INSERT INTO classes (id, name, trainer_id, is_active) VALUES (:id, :name, :trainer_id, :is_active)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, trainer_id = EXCLUDED.trainer_id, is_active = EXCLUDED.is_active`
	upsertModule = `
		INSERT INTO modules (id, class_id, title, description, order_number, is_active)
		VALUES (:id, :class_id, :title, :description, :order_number, :is_active)
		ON CONFLICT (id) DO UPDATE SET class_id = EXCLUDED.class_id, title = EXCLUDED.title, description = EXCLUDED.description,
			order_number = EXCLUDED.order_number, is_active = EXCLUDED.is_active`
	upsertStep = `
		INSERT INTO steps (id, module_id, title, order_number, estimated_minutes)
		VALUES (:id, :module_id, :title, :order_number, :estimated_minutes)
		ON CONFLICT (id) DO UPDATE SET module_id = EXCLUDED.module_id, title = EXCLUDED.title,
			order_number = EXCLUDED.order_number, estimated_minutes = EXCLUDED.estimated_minutes`
	upsertAssignment = `
		INSERT INTO assignments (id, class_id, module_id, step_id, title, instructions, rubric, ai_grading_enabled, is_active)
		VALUES (:id, :class_id, :module_id, :step_id, :title, :instructions, :rubric, :ai_grading_enabled, :is_active)
		ON CONFLICT (id) DO UPDATE SET class_id = EXCLUDED.class_id, module_id = EXCLUDED.module_id, step_id = EXCLUDED.step_id,
			title = EXCLUDED.title, instructions = EXCLUDED.instructions, rubric = EXCLUDED.rubric,
			ai_grading_enabled = EXCLUDED.ai_grading_enabled, is_active = EXCLUDED.is_active`
	upsertEnrollment = `
		INSERT INTO enrollments (class_id, student_id, student_name, student_email, status)
		VALUES (:class_id, :student_id, :student_name, :student_email, :status)
		ON CONFLICT (class_id, student_id) DO UPDATE SET student_name = EXCLUDED.student_name,
			student_email = EXCLUDED.student_email, status = EXCLUDED.status`
)

// Import upserts the whole catalog in one transaction.
func (repo *catalogRepository) Import(ctx context.Context, c catalog.Catalog) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, cl := range c.Classes {
			row := classRow{ID: cl.ID, Name: cl.Name, TrainerID: cl.TrainerID, IsActive: cl.IsActive}
			if _, err := tx.NamedExecContext(ctx, upsertClass, row); err != nil {
				return errors.Wrapf(err, "upserting class %s", cl.ID)
			}
		}
		for _, m := range c.Modules {
			row := moduleRow{ID: m.ID, ClassID: m.ClassID, Title: m.Title, Description: m.Description, OrderNumber: m.OrderNumber, IsActive: m.IsActive}
			if _, err := tx.NamedExecContext(ctx, upsertModule, row); err != nil {
				return errors.Wrapf(err, "upserting module %s", m.ID)
			}
			for _, s := range m.Steps {
				row := stepRow{
					ID:               s.ID,
					ModuleID:         m.ID,
					Title:            s.Title,
					OrderNumber:      s.OrderNumber,
					EstimatedMinutes: null.NewInt(s.EstimatedMinutes, s.EstimatedMinutes > 0),
				}
				if _, err := tx.NamedExecContext(ctx, upsertStep, row); err != nil {
					return errors.Wrapf(err, "upserting step %s", s.ID)
				}
			}
		}
		for _, a := range c.Assignments {
			row := assignmentRow{
				ID:               a.ID,
				ClassID:          a.ClassID,
				ModuleID:         nullString(a.ModuleID),
				StepID:           nullString(a.StepID),
				Title:            a.Title,
				Instructions:     a.Instructions,
				Rubric:           nullString(a.Rubric),
				AIGradingEnabled: a.AIGradingEnabled,
				IsActive:         a.IsActive,
			}
			if _, err := tx.NamedExecContext(ctx, upsertAssignment, row); err != nil {
				return errors.Wrapf(err, "upserting assignment %s", a.ID)
			}
		}
		for _, e := range c.Enrollments {
			row := enrollmentRow{
				ClassID:      e.ClassID,
				StudentID:    e.StudentID,
				StudentName:  e.StudentName,
				StudentEmail: e.StudentEmail,
				Status:       string(e.Status),
			}
			if _, err := tx.NamedExecContext(ctx, upsertEnrollment, row); err != nil {
				return errors.Wrapf(err, "upserting enrollment %s/%s", e.ClassID, e.StudentID)
			}
		}
		return nil
	})
}
