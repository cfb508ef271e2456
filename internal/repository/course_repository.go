package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id int64) (*models.Course, error)
	GetAll(ctx context.Context, limit, offset int) ([]models.Course, int, error)
}

type courseRepository struct {
	*PostgresRepository
}

func NewCourseRepository(db *sql.DB, logger zerolog.Logger) CourseRepository {
	return &courseRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	query := `
		INSERT INTO courses (title, description, credits, lecturer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		course.Title,
		course.Description,
		course.Credits,
		course.LecturerID,
		course.CreatedAt,
		course.UpdatedAt,
	).Scan(&course.ID)
}

func (r *courseRepository) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `
		SELECT id, title, description, credits, lecturer_id, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	course := &models.Course{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.Credits,
		&course.LecturerID,
		&course.CreatedAt,
		&course.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return course, err
}

func (r *courseRepository) GetAll(ctx context.Context, limit, offset int) ([]models.Course, int, error) {
	countQuery := `SELECT COUNT(*) FROM courses`
	var total int
	err := r.db.QueryRowContext(ctx, countQuery).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, title, description, credits, lecturer_id, created_at, updated_at
		FROM courses
		ORDER BY title
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		var course models.Course
		err := rows.Scan(
			&course.ID,
			&course.Title,
			&course.Description,
			&course.Credits,
			&course.LecturerID,
			&course.CreatedAt,
			&course.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		courses = append(courses, course)
	}

	return courses, total, rows.Err()
}
