// Package memory provides in-process implementations of the repository
// contracts, used by tests and by the "memory" database driver.
package memory

import (
	"sync"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

type DB struct {
	mu          sync.RWMutex
	enrollments map[int64]*models.Enrollment
	courses     map[int64]*models.Course
	assignments map[int64]*models.Assignment

	enrollmentSeq int64
	courseSeq     int64
	assignmentSeq int64
}

func Open() *DB {
	return &DB{
		enrollments: make(map[int64]*models.Enrollment),
		courses:     make(map[int64]*models.Course),
		assignments: make(map[int64]*models.Assignment),
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
