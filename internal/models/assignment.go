package models

import (
	"time"
)

type Assignment struct {
	ID          int64      `json:"id" db:"id"`
	CourseID    int64      `json:"course_id" db:"course_id"`
	StudentID   int64      `json:"student_id" db:"student_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Content     string     `json:"content" db:"content"`
	Grade       *float64   `json:"grade" db:"grade"`
	Weight      float64    `json:"weight" db:"weight"`
	Feedback    string     `json:"feedback" db:"feedback"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
	GradedAt    *time.Time `json:"graded_at,omitempty" db:"graded_at"`
	GradedBy    *int64     `json:"graded_by,omitempty" db:"graded_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

func (a *Assignment) IsGraded() bool {
	return a.Grade != nil
}
