package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/grading"
	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id int64) (*models.Assignment, error)
	GetByCourseID(ctx context.Context, courseID int64) ([]models.Assignment, error)
	GetByCourseAndStudent(ctx context.Context, courseID, studentID int64) ([]models.Assignment, error)
	UpdateGrade(ctx context.Context, id int64, grade float64, feedback string, gradedBy int64) (*models.Assignment, error)
	ListGradedAssignments(ctx context.Context, courseID, studentID int64) ([]grading.Score, error)
}

const assignmentColumns = `id, course_id, student_id, title, description, content, grade, weight, feedback,
	due_date, submitted_at, graded_at, graded_by, created_at, updated_at`

type assignmentRepository struct {
	*PostgresRepository
}

func NewAssignmentRepository(db *sql.DB, logger zerolog.Logger) AssignmentRepository {
	return &assignmentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func scanAssignment(row rowScanner) (*models.Assignment, error) {
	var (
		assignment models.Assignment
		grade      sql.NullFloat64
		dueDate    sql.NullTime
		gradedAt   sql.NullTime
		gradedBy   sql.NullInt64
	)
	err := row.Scan(
		&assignment.ID,
		&assignment.CourseID,
		&assignment.StudentID,
		&assignment.Title,
		&assignment.Description,
		&assignment.Content,
		&grade,
		&assignment.Weight,
		&assignment.Feedback,
		&dueDate,
		&assignment.SubmittedAt,
		&gradedAt,
		&gradedBy,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	assignment.Grade = floatPtr(grade)
	assignment.DueDate = timePtr(dueDate)
	assignment.GradedAt = timePtr(gradedAt)
	if gradedBy.Valid {
		id := gradedBy.Int64
		assignment.GradedBy = &id
	}
	return &assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	query := `
		INSERT INTO assignments (course_id, student_id, title, description, content, weight, feedback,
			due_date, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		assignment.CourseID,
		assignment.StudentID,
		assignment.Title,
		assignment.Description,
		assignment.Content,
		assignment.Weight,
		assignment.Feedback,
		nullTime(assignment.DueDate),
		assignment.SubmittedAt,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	).Scan(&assignment.ID)
}

func (r *assignmentRepository) GetByID(ctx context.Context, id int64) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`

	assignment, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return assignment, err
}

func (r *assignmentRepository) GetByCourseID(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE course_id = $1
		ORDER BY submitted_at
	`
	return r.list(ctx, query, courseID)
}

func (r *assignmentRepository) GetByCourseAndStudent(ctx context.Context, courseID, studentID int64) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE course_id = $1 AND student_id = $2
		ORDER BY submitted_at
	`
	return r.list(ctx, query, courseID, studentID)
}

func (r *assignmentRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]models.Assignment, 0)
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *assignment)
	}

	return assignments, rows.Err()
}

func (r *assignmentRepository) UpdateGrade(ctx context.Context, id int64, grade float64, feedback string, gradedBy int64) (*models.Assignment, error) {
	now := time.Now()
	query := `
		UPDATE assignments
		SET grade = $1, feedback = $2, graded_by = $3, graded_at = $4, updated_at = $4
		WHERE id = $5
		RETURNING ` + assignmentColumns

	assignment, err := scanAssignment(r.db.QueryRowContext(ctx, query, grade, feedback, gradedBy, now, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return assignment, err
}

// ListGradedAssignments returns the (grade, weight) pairs of the student's
// graded assignments in the course. Ungraded rows are excluded, not zeroed.
func (r *assignmentRepository) ListGradedAssignments(ctx context.Context, courseID, studentID int64) ([]grading.Score, error) {
	query := `
		SELECT grade, weight
		FROM assignments
		WHERE course_id = $1 AND student_id = $2 AND grade IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query, courseID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]grading.Score, 0)
	for rows.Next() {
		var score grading.Score
		if err := rows.Scan(&score.Grade, &score.Weight); err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	return scores, rows.Err()
}
