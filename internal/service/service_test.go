package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository/memory"
)

type recordingNotifier struct {
	mu        sync.Mutex
	events    []models.NotificationEvent
	broadcast []models.NotificationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event models.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) NotifyAll(_ context.Context, event models.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = append(n.broadcast, event)
}

func (n *recordingNotifier) all() []models.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.NotificationEvent(nil), n.events...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
	n.broadcast = nil
}

type fixture struct {
	enrollmentRepo repository.EnrollmentRepository
	assignmentRepo repository.AssignmentRepository
	courseRepo     repository.CourseRepository
	notifier       *recordingNotifier
	courses        CourseService
	enrollments    EnrollmentService
	assignments    AssignmentService
	gradebook      GradebookService
}

var (
	admin    = models.Caller{UserID: 1, Role: models.RoleAdmin}
	lecturer = models.Caller{UserID: 2, Role: models.RoleLecturer}
	student  = models.Caller{UserID: 10, Role: models.RoleStudent}
)

func setup(t *testing.T) *fixture {
	t.Helper()

	db := memory.Open()
	log := zerolog.Nop()
	f := &fixture{
		enrollmentRepo: memory.NewEnrollmentRepository(db),
		assignmentRepo: memory.NewAssignmentRepository(db),
		courseRepo:     memory.NewCourseRepository(db),
		notifier:       &recordingNotifier{},
	}
	f.courses = NewCourseService(f.courseRepo, log)
	f.enrollments = NewEnrollmentService(f.enrollmentRepo, f.assignmentRepo, f.notifier, log)
	f.assignments = NewAssignmentService(f.assignmentRepo, f.enrollmentRepo, f.courses, f.enrollments, nil, f.notifier, log)
	f.gradebook = NewGradebookService(f.courses, f.enrollmentRepo, log)
	return f
}

func (f *fixture) createCourse(t *testing.T, title string) *models.Course {
	t.Helper()
	course, err := f.courses.CreateCourse(context.Background(), admin, &models.CreateCourseRequest{
		Title:      title,
		Credits:    4,
		LecturerID: lecturer.UserID,
	})
	require.NoError(t, err)
	return course
}

// approvedEnrollment walks a fresh enrollment through the admin approval.
func (f *fixture) approvedEnrollment(t *testing.T, courseID, studentID int64) *models.Enrollment {
	t.Helper()
	ctx := context.Background()
	e, err := f.enrollments.RequestEnrollment(ctx, courseID, studentID)
	require.NoError(t, err)
	e, err = f.enrollments.Decide(ctx, admin, e.ID, models.EnrollmentStatusApproved, nil)
	require.NoError(t, err)
	return e
}

func floatp(v float64) *float64 { return &v }
