package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id int64) (*models.Enrollment, error)
	GetActive(ctx context.Context, courseID, studentID int64) (*models.Enrollment, error)
	GetByStatus(ctx context.Context, courseID, studentID int64, status models.EnrollmentStatus) (*models.Enrollment, error)
	GetByStudentID(ctx context.Context, studentID int64) ([]models.Enrollment, error)
	GetByCourseID(ctx context.Context, courseID int64) ([]models.Enrollment, error)
	GetAll(ctx context.Context, limit, offset int) ([]models.Enrollment, int, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.EnrollmentStatus, finalGrade *float64) (*models.Enrollment, error)
	UpdateFinalGrade(ctx context.Context, id int64, status models.EnrollmentStatus, finalGrade float64) (*models.Enrollment, error)
}

const enrollmentColumns = `id, course_id, student_id, status, final_grade, created_at, updated_at`

type enrollmentRepository struct {
	*PostgresRepository
}

func NewEnrollmentRepository(db *sql.DB, logger zerolog.Logger) EnrollmentRepository {
	return &enrollmentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	var (
		enrollment models.Enrollment
		finalGrade sql.NullFloat64
	)
	err := row.Scan(
		&enrollment.ID,
		&enrollment.CourseID,
		&enrollment.StudentID,
		&enrollment.Status,
		&finalGrade,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	enrollment.FinalGrade = floatPtr(finalGrade)
	return &enrollment, nil
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (course_id, student_id, status, final_grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		enrollment.CourseID,
		enrollment.StudentID,
		enrollment.Status,
		nullFloat(enrollment.FinalGrade),
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	).Scan(&enrollment.ID)

	if isUniqueViolation(err) {
		return ErrDuplicateActive
	}
	return err
}

func (r *enrollmentRepository) GetByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return enrollment, err
}

func (r *enrollmentRepository) GetActive(ctx context.Context, courseID, studentID int64) (*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE course_id = $1 AND student_id = $2 AND status IN ('pending', 'approved')
	`

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, courseID, studentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return enrollment, err
}

func (r *enrollmentRepository) GetByStatus(ctx context.Context, courseID, studentID int64, status models.EnrollmentStatus) (*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE course_id = $1 AND student_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, courseID, studentID, status))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return enrollment, err
}

func (r *enrollmentRepository) GetByStudentID(ctx context.Context, studentID int64) ([]models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, studentID)
}

func (r *enrollmentRepository) GetByCourseID(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE course_id = $1
		ORDER BY student_id, created_at
	`
	return r.list(ctx, query, courseID)
}

func (r *enrollmentRepository) GetAll(ctx context.Context, limit, offset int) ([]models.Enrollment, int, error) {
	countQuery := `SELECT COUNT(*) FROM enrollments`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	enrollments, err := r.list(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return enrollments, total, nil
}

func (r *enrollmentRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := make([]models.Enrollment, 0)
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, *enrollment)
	}

	return enrollments, rows.Err()
}

func (r *enrollmentRepository) UpdateStatus(ctx context.Context, id int64, from, to models.EnrollmentStatus, finalGrade *float64) (*models.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET status = $1, final_grade = COALESCE($2, final_grade), updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + enrollmentColumns

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query,
		to,
		nullFloat(finalGrade),
		time.Now(),
		id,
		from,
	))
	switch {
	case err == sql.ErrNoRows:
		r.logger.Debug().Int64("enrollment_id", id).Str("expected", string(from)).Msg("Enrollment transition lost race")
		return nil, ErrStaleState
	case isUniqueViolation(err):
		return nil, ErrDuplicateActive
	}
	return enrollment, err
}

func (r *enrollmentRepository) UpdateFinalGrade(ctx context.Context, id int64, status models.EnrollmentStatus, finalGrade float64) (*models.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET final_grade = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + enrollmentColumns

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, finalGrade, time.Now(), id, status))
	if err == sql.ErrNoRows {
		return nil, ErrStaleState
	}
	return enrollment, err
}
