package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
)

type CourseService interface {
	CreateCourse(ctx context.Context, caller models.Caller, req *models.CreateCourseRequest) (*models.Course, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	GetAllCourses(ctx context.Context, page, limit int) ([]models.Course, int, error)
}

type courseService struct {
	courseRepo repository.CourseRepository
	logger     zerolog.Logger
}

func NewCourseService(courseRepo repository.CourseRepository, logger zerolog.Logger) CourseService {
	return &courseService{
		courseRepo: courseRepo,
		logger:     logger,
	}
}

func (s *courseService) CreateCourse(ctx context.Context, caller models.Caller, req *models.CreateCourseRequest) (*models.Course, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can create courses", ErrPermission)
	}

	now := time.Now()
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Credits:     req.Credits,
		LecturerID:  req.LecturerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.logger.Info().
		Int64("course_id", course.ID).
		Str("title", course.Title).
		Msg("Course created")

	return course, nil
}

// GetCourse fails with ErrNotFound for an unknown id.
func (s *courseService) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("%w: course %d", ErrNotFound, id)
	}

	return course, nil
}

func (s *courseService) GetAllCourses(ctx context.Context, page, limit int) ([]models.Course, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	offset := (page - 1) * limit

	courses, total, err := s.courseRepo.GetAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get all courses: %w", err)
	}

	return courses, total, nil
}
