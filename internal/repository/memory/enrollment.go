package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
)

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) repository.EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func cloneEnrollment(e *models.Enrollment) *models.Enrollment {
	c := *e
	c.FinalGrade = copyFloat(e.FinalGrade)
	return &c
}

// activeLocked mirrors the partial unique index on (course_id, student_id).
func (r *enrollmentRepository) activeLocked(courseID, studentID int64) *models.Enrollment {
	for _, e := range r.db.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID && e.Status.IsActive() {
			return e
		}
	}
	return nil
}

func (r *enrollmentRepository) Create(_ context.Context, enrollment *models.Enrollment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if enrollment.Status.IsActive() && r.activeLocked(enrollment.CourseID, enrollment.StudentID) != nil {
		return repository.ErrDuplicateActive
	}

	r.db.enrollmentSeq++
	enrollment.ID = r.db.enrollmentSeq
	r.db.enrollments[enrollment.ID] = cloneEnrollment(enrollment)
	return nil
}

func (r *enrollmentRepository) GetByID(_ context.Context, id int64) (*models.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if e, ok := r.db.enrollments[id]; ok {
		return cloneEnrollment(e), nil
	}
	return nil, nil
}

func (r *enrollmentRepository) GetActive(_ context.Context, courseID, studentID int64) (*models.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if e := r.activeLocked(courseID, studentID); e != nil {
		return cloneEnrollment(e), nil
	}
	return nil, nil
}

func (r *enrollmentRepository) GetByStatus(_ context.Context, courseID, studentID int64, status models.EnrollmentStatus) (*models.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var latest *models.Enrollment
	for _, e := range r.db.enrollments {
		if e.CourseID != courseID || e.StudentID != studentID || e.Status != status {
			continue
		}
		if latest == nil || e.ID > latest.ID {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneEnrollment(latest), nil
}

func (r *enrollmentRepository) filter(keep func(*models.Enrollment) bool) []models.Enrollment {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Enrollment, 0)
	for _, e := range r.db.enrollments {
		if keep(e) {
			out = append(out, *cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *enrollmentRepository) GetByStudentID(_ context.Context, studentID int64) ([]models.Enrollment, error) {
	return r.filter(func(e *models.Enrollment) bool { return e.StudentID == studentID }), nil
}

func (r *enrollmentRepository) GetByCourseID(_ context.Context, courseID int64) ([]models.Enrollment, error) {
	return r.filter(func(e *models.Enrollment) bool { return e.CourseID == courseID }), nil
}

func (r *enrollmentRepository) GetAll(_ context.Context, limit, offset int) ([]models.Enrollment, int, error) {
	all := r.filter(func(*models.Enrollment) bool { return true })
	return page(all, limit, offset), len(all), nil
}

func (r *enrollmentRepository) UpdateStatus(_ context.Context, id int64, from, to models.EnrollmentStatus, finalGrade *float64) (*models.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.enrollments[id]
	if !ok || e.Status != from {
		return nil, repository.ErrStaleState
	}
	if to.IsActive() && !from.IsActive() {
		if other := r.activeLocked(e.CourseID, e.StudentID); other != nil {
			return nil, repository.ErrDuplicateActive
		}
	}

	e.Status = to
	if finalGrade != nil {
		e.FinalGrade = copyFloat(finalGrade)
	}
	e.UpdatedAt = time.Now()
	return cloneEnrollment(e), nil
}

func (r *enrollmentRepository) UpdateFinalGrade(_ context.Context, id int64, status models.EnrollmentStatus, finalGrade float64) (*models.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.enrollments[id]
	if !ok || e.Status != status {
		return nil, repository.ErrStaleState
	}

	e.FinalGrade = &finalGrade
	e.UpdatedAt = time.Now()
	return cloneEnrollment(e), nil
}
