package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
)

const defaultAssignmentWeight = 1.0

// GradeEventPublisher hands grade changes to the asynchronous grading consumer.
type GradeEventPublisher interface {
	PublishAssignmentGraded(ctx context.Context, event *models.AssignmentGradedEvent) error
}

type AssignmentService interface {
	SubmitAssignment(ctx context.Context, caller models.Caller, req *models.SubmitAssignmentRequest) (*models.Assignment, error)
	GradeAssignment(ctx context.Context, caller models.Caller, id int64, req *models.GradeAssignmentRequest) (*models.Assignment, error)
	GetAssignmentByID(ctx context.Context, caller models.Caller, id int64) (*models.Assignment, error)
	GetAssignmentsByCourse(ctx context.Context, caller models.Caller, courseID int64) ([]models.Assignment, error)
}

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	enrollmentRepo repository.EnrollmentRepository
	courses        CourseService
	enrollments    EnrollmentService
	gradeEvents    GradeEventPublisher
	notifier       Notifier
	logger         zerolog.Logger
}

func NewAssignmentService(
	assignmentRepo repository.AssignmentRepository,
	enrollmentRepo repository.EnrollmentRepository,
	courses CourseService,
	enrollments EnrollmentService,
	gradeEvents GradeEventPublisher,
	notifier Notifier,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		enrollmentRepo: enrollmentRepo,
		courses:        courses,
		enrollments:    enrollments,
		gradeEvents:    gradeEvents,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *assignmentService) SubmitAssignment(ctx context.Context, caller models.Caller, req *models.SubmitAssignmentRequest) (*models.Assignment, error) {
	course, err := s.courses.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollmentRepo.GetByStatus(ctx, course.ID, caller.UserID, models.EnrollmentStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, fmt.Errorf("%w: you are not enrolled in this course", ErrPermission)
	}

	weight := req.Weight
	if weight <= 0 {
		weight = defaultAssignmentWeight
	}

	now := time.Now()
	assignment := &models.Assignment{
		CourseID:    course.ID,
		StudentID:   caller.UserID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Weight:      weight,
		DueDate:     req.DueDate,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.logger.Info().
		Int64("assignment_id", assignment.ID).
		Int64("course_id", course.ID).
		Int64("student_id", caller.UserID).
		Msg("Assignment submitted")

	s.notifier.Notify(ctx, models.NewNotificationEvent(
		models.EventAssignmentSubmitted,
		course.LecturerID,
		fmt.Sprintf("New assignment submitted for %s", course.Title),
		assignment,
	))

	return assignment, nil
}

// GradeAssignment commits the grade first; the final grade recompute and the
// student's notification follow, and neither can undo the committed grade.
func (s *assignmentService) GradeAssignment(ctx context.Context, caller models.Caller, id int64, req *models.GradeAssignmentRequest) (*models.Assignment, error) {
	if req.Grade < 0 || req.Grade > 100 {
		return nil, fmt.Errorf("%w: grade must be between 0 and 100", ErrInvalidInput)
	}

	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil {
		return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
	}

	course, err := s.courses.GetCourse(ctx, assignment.CourseID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && course.LecturerID != caller.UserID {
		return nil, fmt.Errorf("%w: you can only grade assignments for your courses", ErrPermission)
	}

	graded, err := s.assignmentRepo.UpdateGrade(ctx, id, req.Grade, req.Feedback, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to grade assignment: %w", err)
	}
	if graded == nil {
		return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
	}

	s.logger.Info().
		Int64("assignment_id", id).
		Int64("graded_by", caller.UserID).
		Float64("grade", req.Grade).
		Msg("Assignment graded")

	s.finalGradeChanged(ctx, graded)

	s.notifier.Notify(ctx, models.NewNotificationEvent(
		models.EventAssignmentGraded,
		graded.StudentID,
		fmt.Sprintf("Assignment %q has been graded", graded.Title),
		graded,
	))

	return graded, nil
}

// finalGradeChanged queues the recompute on the grading consumer when one is
// configured and runs it inline otherwise or when publishing fails.
func (s *assignmentService) finalGradeChanged(ctx context.Context, graded *models.Assignment) {
	if s.gradeEvents != nil {
		err := s.gradeEvents.PublishAssignmentGraded(ctx, &models.AssignmentGradedEvent{
			AssignmentID: graded.ID,
			CourseID:     graded.CourseID,
			StudentID:    graded.StudentID,
			Timestamp:    time.Now().Unix(),
		})
		if err == nil {
			return
		}
		s.logger.Warn().
			Err(err).
			Int64("assignment_id", graded.ID).
			Msg("Failed to publish assignment graded event, recomputing inline")
	}

	if err := s.enrollments.RecomputeFinalGrade(ctx, graded.CourseID, graded.StudentID); err != nil {
		s.logger.Error().
			Err(err).
			Int64("course_id", graded.CourseID).
			Int64("student_id", graded.StudentID).
			Msg("Failed to recompute final grade")
	}
}

// GetAssignmentByID is visible to the submitting student, the course lecturer
// and admins.
func (s *assignmentService) GetAssignmentByID(ctx context.Context, caller models.Caller, id int64) (*models.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil {
		return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
	}

	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		if assignment.StudentID != caller.UserID {
			return nil, fmt.Errorf("%w: you can only view your own assignments", ErrPermission)
		}
	default:
		course, err := s.courses.GetCourse(ctx, assignment.CourseID)
		if err != nil {
			return nil, err
		}
		if course.LecturerID != caller.UserID {
			return nil, fmt.Errorf("%w: you can only view assignments for your courses", ErrPermission)
		}
	}

	return assignment, nil
}

// GetAssignmentsByCourse returns only the caller's own work to students and
// the whole course to its lecturer and to admins.
func (s *assignmentService) GetAssignmentsByCourse(ctx context.Context, caller models.Caller, courseID int64) ([]models.Assignment, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var assignments []models.Assignment
	switch {
	case caller.Role == models.RoleStudent:
		assignments, err = s.assignmentRepo.GetByCourseAndStudent(ctx, courseID, caller.UserID)
	case caller.Role == models.RoleLecturer && course.LecturerID != caller.UserID:
		return nil, fmt.Errorf("%w: you can only view assignments for your courses", ErrPermission)
	default:
		assignments, err = s.assignmentRepo.GetByCourseID(ctx, courseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}

	return assignments, nil
}
