package models

import "time"

// Data Transfer Objects

type CreateEnrollmentRequest struct {
	CourseID int64 `json:"course_id" validate:"required,gt=0"`
}

type UpdateEnrollmentStatusRequest struct {
	Status     string   `json:"status" validate:"required,oneof=approved rejected"`
	FinalGrade *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=100"`
}

type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Credits     int    `json:"credits" validate:"gte=0,lte=60"`
	LecturerID  int64  `json:"lecturer_id" validate:"required,gt=0"`
}

type SubmitAssignmentRequest struct {
	CourseID    int64      `json:"course_id" validate:"required,gt=0"`
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description string     `json:"description" validate:"max=1000"`
	Content     string     `json:"content"`
	Weight      float64    `json:"weight" validate:"omitempty,gt=0,lte=9.99"`
	DueDate     *time.Time `json:"due_date"`
}

type GradeAssignmentRequest struct {
	Grade    float64 `json:"grade" validate:"gte=0,lte=100"`
	Feedback string  `json:"feedback" validate:"max=2000"`
}

type BroadcastRequest struct {
	Message string                 `json:"message" validate:"required,max=1000"`
	Data    map[string]interface{} `json:"data"`
}

type EnrollmentsResponse struct {
	Enrollments []Enrollment `json:"enrollments"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	Limit       int          `json:"limit"`
}
