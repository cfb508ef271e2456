package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

func TestExportGradebook(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	course := f.createCourse(t, "Operating Systems")

	e, err := f.enrollments.RequestEnrollment(ctx, course.ID, student.UserID)
	require.NoError(t, err)
	_, err = f.enrollments.Decide(ctx, admin, e.ID, models.EnrollmentStatusApproved, floatp(88.5))
	require.NoError(t, err)
	_, err = f.enrollments.RequestEnrollment(ctx, course.ID, 11)
	require.NoError(t, err)

	book, err := f.gradebook.ExportGradebook(ctx, lecturer, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "gradebook-course-1.xlsx", book.FileName)

	x, err := excelize.OpenReader(bytes.NewReader(book.Content))
	require.NoError(t, err)
	defer x.Close()

	rows, err := x.GetRows(gradebookSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "Operating Systems", rows[0][0])
	assert.Equal(t, gradebookHeaders, rows[1])
	assert.Equal(t, []string{"1", "10", "approved", "88.5"}, rows[2][:4])
	assert.Equal(t, "pending", rows[3][2])
	assert.Equal(t, "", rows[3][3])
	assert.Empty(t, rows[4])
	assert.Equal(t, []string{"Average final grade", "88.50"}, rows[5])
}

func TestExportGradebookPermissions(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	course := f.createCourse(t, "Operating Systems")

	_, err := f.gradebook.ExportGradebook(ctx, student, course.ID)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.gradebook.ExportGradebook(ctx, models.Caller{UserID: 3, Role: models.RoleLecturer}, course.ID)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.gradebook.ExportGradebook(ctx, admin, 77)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.gradebook.ExportGradebook(ctx, admin, course.ID)
	assert.NoError(t, err)
}
