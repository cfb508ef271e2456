package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/grading"
	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
)

// GradeSource lists a student's graded assignments in a course.
type GradeSource interface {
	ListGradedAssignments(ctx context.Context, courseID, studentID int64) ([]grading.Score, error)
}

type EnrollmentService interface {
	RequestEnrollment(ctx context.Context, courseID, studentID int64) (*models.Enrollment, error)
	Decide(ctx context.Context, caller models.Caller, enrollmentID int64, status models.EnrollmentStatus, finalGrade *float64) (*models.Enrollment, error)
	Drop(ctx context.Context, courseID, studentID int64) (*models.Enrollment, error)
	RecomputeFinalGrade(ctx context.Context, courseID, studentID int64) error
	GetEnrollmentsByStudent(ctx context.Context, studentID int64) ([]models.Enrollment, error)
	GetEnrollmentsByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error)
	GetAllEnrollments(ctx context.Context, page, limit int) (*models.EnrollmentsResponse, error)
}

type enrollmentKey struct {
	courseID  int64
	studentID int64
}

type enrollmentService struct {
	enrollmentRepo repository.EnrollmentRepository
	grades         GradeSource
	notifier       Notifier
	locks          *keyedMutex[enrollmentKey]
	logger         zerolog.Logger
}

func NewEnrollmentService(
	enrollmentRepo repository.EnrollmentRepository,
	grades GradeSource,
	notifier Notifier,
	logger zerolog.Logger,
) EnrollmentService {
	return &enrollmentService{
		enrollmentRepo: enrollmentRepo,
		grades:         grades,
		notifier:       notifier,
		locks:          newKeyedMutex[enrollmentKey](),
		logger:         logger,
	}
}

// lock serializes every read-modify-write on one (course, student) pair.
// Events are emitted before unlocking so that a pair's events go out in
// commit order.
func (s *enrollmentService) lock(courseID, studentID int64) func() {
	return s.locks.Lock(enrollmentKey{courseID: courseID, studentID: studentID})
}

func (s *enrollmentService) RequestEnrollment(ctx context.Context, courseID, studentID int64) (*models.Enrollment, error) {
	unlock := s.lock(courseID, studentID)
	defer unlock()

	existing, err := s.enrollmentRepo.GetActive(ctx, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing enrollment: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: student already has a %s enrollment in this course", ErrConflict, existing.Status)
	}

	now := time.Now()
	enrollment := &models.Enrollment{
		CourseID:  courseID,
		StudentID: studentID,
		Status:    models.EnrollmentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			return nil, fmt.Errorf("%w: student already has an active enrollment in this course", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	s.logger.Info().
		Int64("enrollment_id", enrollment.ID).
		Int64("course_id", courseID).
		Int64("student_id", studentID).
		Msg("Enrollment requested")

	s.notifier.Notify(ctx, models.NewNotificationEvent(
		models.EventEnrollmentCreated,
		studentID,
		fmt.Sprintf("Enrollment request sent for course %d", courseID),
		enrollment,
	))

	return enrollment, nil
}

func (s *enrollmentService) Decide(ctx context.Context, caller models.Caller, enrollmentID int64, status models.EnrollmentStatus, finalGrade *float64) (*models.Enrollment, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can update enrollment status", ErrPermission)
	}
	if status != models.EnrollmentStatusApproved && status != models.EnrollmentStatusRejected {
		return nil, fmt.Errorf("%w: status must be approved or rejected", ErrInvalidInput)
	}
	if finalGrade != nil {
		if *finalGrade < 0 || *finalGrade > 100 {
			return nil, fmt.Errorf("%w: final grade must be between 0 and 100", ErrInvalidInput)
		}
		rounded := grading.Round(*finalGrade)
		finalGrade = &rounded
	}

	enrollment, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, fmt.Errorf("%w: enrollment %d", ErrNotFound, enrollmentID)
	}

	unlock := s.lock(enrollment.CourseID, enrollment.StudentID)
	defer unlock()

	// re-read under the lock; the first read only located the pair
	enrollment, err = s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, fmt.Errorf("%w: enrollment %d", ErrNotFound, enrollmentID)
	}
	if !enrollment.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: cannot change enrollment from %s to %s", ErrConflict, enrollment.Status, status)
	}

	updated, err := s.enrollmentRepo.UpdateStatus(ctx, enrollmentID, enrollment.Status, status, finalGrade)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) || errors.Is(err, repository.ErrDuplicateActive) {
			return nil, fmt.Errorf("%w: enrollment %d changed concurrently", ErrConflict, enrollmentID)
		}
		return nil, fmt.Errorf("failed to update enrollment: %w", err)
	}

	s.logger.Info().
		Int64("enrollment_id", enrollmentID).
		Int64("decided_by", caller.UserID).
		Str("status", status.String()).
		Msg("Enrollment decided")

	s.notifier.Notify(ctx, models.NewNotificationEvent(
		models.EventEnrollmentUpdated,
		updated.StudentID,
		fmt.Sprintf("Enrollment status updated to: %s", status),
		updated,
	))

	return updated, nil
}

func (s *enrollmentService) Drop(ctx context.Context, courseID, studentID int64) (*models.Enrollment, error) {
	unlock := s.lock(courseID, studentID)
	defer unlock()

	enrollment, err := s.enrollmentRepo.GetByStatus(ctx, courseID, studentID, models.EnrollmentStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, fmt.Errorf("%w: no approved enrollment in course %d", ErrNotFound, courseID)
	}

	updated, err := s.enrollmentRepo.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusApproved, models.EnrollmentStatusDropped, nil)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%w: enrollment %d changed concurrently", ErrConflict, enrollment.ID)
		}
		return nil, fmt.Errorf("failed to drop enrollment: %w", err)
	}

	s.logger.Info().
		Int64("enrollment_id", enrollment.ID).
		Int64("course_id", courseID).
		Int64("student_id", studentID).
		Msg("Enrollment dropped")

	s.notifier.Notify(ctx, models.NewNotificationEvent(
		models.EventEnrollmentDropped,
		studentID,
		"Successfully dropped from course",
		map[string]interface{}{
			"course_id":  courseID,
			"enrollment": updated,
		},
	))

	return updated, nil
}

// RecomputeFinalGrade is called by the grading workflow after it commits a
// grade change. Without an active enrollment there is nothing to update, and
// without graded work the stored grade is left as it is.
func (s *enrollmentService) RecomputeFinalGrade(ctx context.Context, courseID, studentID int64) error {
	unlock := s.lock(courseID, studentID)
	defer unlock()

	enrollment, err := s.enrollmentRepo.GetActive(ctx, courseID, studentID)
	if err != nil {
		return fmt.Errorf("failed to get active enrollment: %w", err)
	}
	if enrollment == nil {
		s.logger.Debug().
			Int64("course_id", courseID).
			Int64("student_id", studentID).
			Msg("No active enrollment, final grade recompute skipped")
		return nil
	}

	scores, err := s.grades.ListGradedAssignments(ctx, courseID, studentID)
	if err != nil {
		return fmt.Errorf("failed to list graded assignments: %w", err)
	}

	finalGrade, ok := grading.FinalGrade(scores)
	if !ok || grading.Equal(enrollment.FinalGrade, &finalGrade) {
		return nil
	}

	updated, err := s.enrollmentRepo.UpdateFinalGrade(ctx, enrollment.ID, enrollment.Status, finalGrade)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fmt.Errorf("%w: enrollment %d changed concurrently", ErrConflict, enrollment.ID)
		}
		return fmt.Errorf("failed to update final grade: %w", err)
	}

	s.logger.Info().
		Int64("enrollment_id", enrollment.ID).
		Float64("final_grade", finalGrade).
		Msg("Final grade recomputed")

	s.notifier.Notify(ctx, models.NewNotificationEvent(
		models.EventEnrollmentUpdated,
		studentID,
		fmt.Sprintf("Final grade updated to: %.2f", finalGrade),
		updated,
	))

	return nil
}

func (s *enrollmentService) GetEnrollmentsByStudent(ctx context.Context, studentID int64) ([]models.Enrollment, error) {
	enrollments, err := s.enrollmentRepo.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollments by student: %w", err)
	}
	return enrollments, nil
}

func (s *enrollmentService) GetEnrollmentsByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	enrollments, err := s.enrollmentRepo.GetByCourseID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollments by course: %w", err)
	}
	return enrollments, nil
}

func (s *enrollmentService) GetAllEnrollments(ctx context.Context, page, limit int) (*models.EnrollmentsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	offset := (page - 1) * limit

	enrollments, total, err := s.enrollmentRepo.GetAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get all enrollments: %w", err)
	}

	return &models.EnrollmentsResponse{
		Enrollments: enrollments,
		Total:       total,
		Page:        page,
		Limit:       limit,
	}, nil
}
