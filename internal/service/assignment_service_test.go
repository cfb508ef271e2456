package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

func TestSubmitAssignment(t *testing.T) {
	ctx := context.Background()

	t.Run("approved student", func(t *testing.T) {
		f := setup(t)
		course := f.createCourse(t, "Distributed Systems")
		f.approvedEnrollment(t, course.ID, student.UserID)
		f.notifier.reset()

		a, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{
			CourseID: course.ID,
			Title:    "Raft notes",
		})
		require.NoError(t, err)
		assert.Equal(t, student.UserID, a.StudentID)
		assert.Equal(t, 1.0, a.Weight)
		assert.False(t, a.IsGraded())

		events := f.notifier.all()
		require.Len(t, events, 1)
		assert.Equal(t, models.EventAssignmentSubmitted, events[0].Type)
		assert.Equal(t, lecturer.UserID, events[0].TargetUserID)
	})

	t.Run("pending student", func(t *testing.T) {
		f := setup(t)
		course := f.createCourse(t, "Distributed Systems")
		_, err := f.enrollments.RequestEnrollment(ctx, course.ID, student.UserID)
		require.NoError(t, err)

		_, err = f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{
			CourseID: course.ID,
			Title:    "Raft notes",
		})
		assert.ErrorIs(t, err, ErrPermission)
	})

	t.Run("unknown course", func(t *testing.T) {
		f := setup(t)
		_, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{
			CourseID: 42,
			Title:    "Raft notes",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGradeAssignmentRecomputesFinalGrade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	course := f.createCourse(t, "Compilers")
	e := f.approvedEnrollment(t, course.ID, student.UserID)

	first, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{CourseID: course.ID, Title: "Lexer", Weight: 1})
	require.NoError(t, err)
	second, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{CourseID: course.ID, Title: "Parser", Weight: 3})
	require.NoError(t, err)
	f.notifier.reset()

	graded, err := f.assignments.GradeAssignment(ctx, lecturer, first.ID, &models.GradeAssignmentRequest{Grade: 60, Feedback: "ok"})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 60.0, *graded.Grade)
	require.NotNil(t, graded.GradedBy)
	assert.Equal(t, lecturer.UserID, *graded.GradedBy)

	_, err = f.assignments.GradeAssignment(ctx, admin, second.ID, &models.GradeAssignmentRequest{Grade: 100})
	require.NoError(t, err)

	stored, err := f.enrollmentRepo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FinalGrade)
	assert.Equal(t, 90.0, *stored.FinalGrade)

	var types []models.EventType
	for _, ev := range f.notifier.all() {
		assert.Equal(t, student.UserID, ev.TargetUserID)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []models.EventType{
		models.EventEnrollmentUpdated,
		models.EventAssignmentGraded,
		models.EventEnrollmentUpdated,
		models.EventAssignmentGraded,
	}, types)
}

func TestGradeAssignmentErrors(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	course := f.createCourse(t, "Compilers")
	f.approvedEnrollment(t, course.ID, student.UserID)
	a, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{CourseID: course.ID, Title: "Lexer"})
	require.NoError(t, err)

	otherLecturer := models.Caller{UserID: 3, Role: models.RoleLecturer}

	tests := []struct {
		name    string
		caller  models.Caller
		id      int64
		grade   float64
		wantErr error
	}{
		{name: "student", caller: student, id: a.ID, grade: 50, wantErr: ErrPermission},
		{name: "other lecturer", caller: otherLecturer, id: a.ID, grade: 50, wantErr: ErrPermission},
		{name: "unknown assignment", caller: admin, id: 99, grade: 50, wantErr: ErrNotFound},
		{name: "grade above range", caller: lecturer, id: a.ID, grade: 100.5, wantErr: ErrInvalidInput},
		{name: "negative grade", caller: lecturer, id: a.ID, grade: -1, wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.assignments.GradeAssignment(ctx, tt.caller, tt.id, &models.GradeAssignmentRequest{Grade: tt.grade})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := f.assignmentRepo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsGraded())
}

func TestGetAssignmentsByCourse(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	course := f.createCourse(t, "Compilers")
	other := models.Caller{UserID: 11, Role: models.RoleStudent}
	for _, c := range []models.Caller{student, other} {
		f.approvedEnrollment(t, course.ID, c.UserID)
		_, err := f.assignments.SubmitAssignment(ctx, c, &models.SubmitAssignmentRequest{CourseID: course.ID, Title: "Lexer"})
		require.NoError(t, err)
	}

	mine, err := f.assignments.GetAssignmentsByCourse(ctx, student, course.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, student.UserID, mine[0].StudentID)

	all, err := f.assignments.GetAssignmentsByCourse(ctx, lecturer, course.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.assignments.GetAssignmentsByCourse(ctx, models.Caller{UserID: 3, Role: models.RoleLecturer}, course.ID)
	assert.ErrorIs(t, err, ErrPermission)
}

type fakeGradeEvents struct {
	err    error
	events []*models.AssignmentGradedEvent
}

func (p *fakeGradeEvents) PublishAssignmentGraded(_ context.Context, event *models.AssignmentGradedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestGradeAssignmentPublishesToGradingConsumer(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		name        string
		publishErr  error
		wantInline  bool
		wantPublish int
	}{
		{name: "published", wantPublish: 1},
		{name: "publish failure falls back", publishErr: assert.AnError, wantInline: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			events := &fakeGradeEvents{err: tt.publishErr}
			f.assignments = NewAssignmentService(f.assignmentRepo, f.enrollmentRepo, f.courses, f.enrollments, events, f.notifier, zerolog.Nop())

			course := f.createCourse(t, "Networks")
			e := f.approvedEnrollment(t, course.ID, student.UserID)
			a, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{CourseID: course.ID, Title: "TCP"})
			require.NoError(t, err)

			_, err = f.assignments.GradeAssignment(ctx, lecturer, a.ID, &models.GradeAssignmentRequest{Grade: 73})
			require.NoError(t, err)

			require.Len(t, events.events, tt.wantPublish)
			if tt.wantPublish > 0 {
				assert.Equal(t, &models.AssignmentGradedEvent{
					AssignmentID: a.ID,
					CourseID:     course.ID,
					StudentID:    student.UserID,
					Timestamp:    events.events[0].Timestamp,
				}, events.events[0])
			}

			stored, err := f.enrollmentRepo.GetByID(ctx, e.ID)
			require.NoError(t, err)
			if tt.wantInline {
				require.NotNil(t, stored.FinalGrade)
				assert.Equal(t, 73.0, *stored.FinalGrade)
			} else {
				assert.Nil(t, stored.FinalGrade)
			}
		})
	}
}

func TestGetAssignmentByID(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	course := f.createCourse(t, "Compilers")
	f.approvedEnrollment(t, course.ID, student.UserID)
	a, err := f.assignments.SubmitAssignment(ctx, student, &models.SubmitAssignmentRequest{CourseID: course.ID, Title: "Lexer"})
	require.NoError(t, err)

	for _, c := range []models.Caller{student, lecturer, admin} {
		got, err := f.assignments.GetAssignmentByID(ctx, c, a.ID)
		require.NoError(t, err, "role %s", c.Role)
		assert.Equal(t, a.ID, got.ID)
	}

	_, err = f.assignments.GetAssignmentByID(ctx, models.Caller{UserID: 11, Role: models.RoleStudent}, a.ID)
	assert.ErrorIs(t, err, ErrPermission)
	_, err = f.assignments.GetAssignmentByID(ctx, models.Caller{UserID: 3, Role: models.RoleLecturer}, a.ID)
	assert.ErrorIs(t, err, ErrPermission)
	_, err = f.assignments.GetAssignmentByID(ctx, admin, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
