package models

import (
	"time"
)

type Enrollment struct {
	ID         int64            `json:"id" db:"id"`
	CourseID   int64            `json:"course_id" db:"course_id"`
	StudentID  int64            `json:"student_id" db:"student_id"`
	Status     EnrollmentStatus `json:"status" db:"status"`
	FinalGrade *float64         `json:"final_grade" db:"final_grade"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

type EnrollmentStatus string

const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
	EnrollmentStatusDropped  EnrollmentStatus = "dropped"
)

func (s EnrollmentStatus) String() string {
	return string(s)
}

// IsActive reports whether the status counts towards the one-active-enrollment
// limit of a (course, student) pair.
func (s EnrollmentStatus) IsActive() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// CanTransitionTo encodes pending -> {approved, rejected} and approved -> dropped.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusPending:
		return next == EnrollmentStatusApproved || next == EnrollmentStatusRejected
	case EnrollmentStatusApproved:
		return next == EnrollmentStatusDropped
	default:
		return false
	}
}
