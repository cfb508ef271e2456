package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Nurudeenbika/university-crm-backend/internal/grading"
	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
)

type assignmentRepository struct {
	db *DB
}

func NewAssignmentRepository(db *DB) repository.AssignmentRepository {
	return &assignmentRepository{db: db}
}

func cloneAssignment(a *models.Assignment) *models.Assignment {
	c := *a
	c.Grade = copyFloat(a.Grade)
	return &c
}

func (r *assignmentRepository) Create(_ context.Context, assignment *models.Assignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.assignmentSeq++
	assignment.ID = r.db.assignmentSeq
	r.db.assignments[assignment.ID] = cloneAssignment(assignment)
	return nil
}

func (r *assignmentRepository) GetByID(_ context.Context, id int64) (*models.Assignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if a, ok := r.db.assignments[id]; ok {
		return cloneAssignment(a), nil
	}
	return nil, nil
}

func (r *assignmentRepository) filter(keep func(*models.Assignment) bool) []models.Assignment {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Assignment, 0)
	for _, a := range r.db.assignments {
		if keep(a) {
			out = append(out, *cloneAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *assignmentRepository) GetByCourseID(_ context.Context, courseID int64) ([]models.Assignment, error) {
	return r.filter(func(a *models.Assignment) bool { return a.CourseID == courseID }), nil
}

func (r *assignmentRepository) GetByCourseAndStudent(_ context.Context, courseID, studentID int64) ([]models.Assignment, error) {
	return r.filter(func(a *models.Assignment) bool {
		return a.CourseID == courseID && a.StudentID == studentID
	}), nil
}

func (r *assignmentRepository) UpdateGrade(_ context.Context, id int64, grade float64, feedback string, gradedBy int64) (*models.Assignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.assignments[id]
	if !ok {
		return nil, nil
	}

	now := time.Now()
	a.Grade = &grade
	a.Feedback = feedback
	a.GradedBy = &gradedBy
	a.GradedAt = &now
	a.UpdatedAt = now
	return cloneAssignment(a), nil
}

func (r *assignmentRepository) ListGradedAssignments(_ context.Context, courseID, studentID int64) ([]grading.Score, error) {
	scores := make([]grading.Score, 0)
	for _, a := range r.filter(func(a *models.Assignment) bool {
		return a.CourseID == courseID && a.StudentID == studentID && a.Grade != nil
	}) {
		scores = append(scores, grading.Score{Grade: *a.Grade, Weight: a.Weight})
	}
	return scores, nil
}
