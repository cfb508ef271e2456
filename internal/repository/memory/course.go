package memory

import (
	"context"
	"sort"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/repository"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) repository.CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(_ context.Context, course *models.Course) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.courseSeq++
	course.ID = r.db.courseSeq
	c := *course
	r.db.courses[c.ID] = &c
	return nil
}

func (r *courseRepository) GetByID(_ context.Context, id int64) (*models.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.courses[id]; ok {
		course := *c
		return &course, nil
	}
	return nil, nil
}

func (r *courseRepository) GetAll(_ context.Context, limit, offset int) ([]models.Course, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	all := make([]models.Course, 0, len(r.db.courses))
	for _, c := range r.db.courses {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })
	return page(all, limit, offset), len(all), nil
}
