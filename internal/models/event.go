package models

import "time"

type EventType string

const (
	EventEnrollmentCreated   EventType = "enrollment_created"
	EventEnrollmentUpdated   EventType = "enrollment_updated"
	EventEnrollmentDropped   EventType = "enrollment_dropped"
	EventAssignmentSubmitted EventType = "assignment_submitted"
	EventAssignmentGraded    EventType = "assignment_graded"
	EventAnnouncement        EventType = "announcement"
)

// NotificationEvent is pushed verbatim to every live connection of TargetUserID.
type NotificationEvent struct {
	Type         EventType   `json:"type"`
	TargetUserID int64       `json:"targetUserId"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data"`
	Timestamp    time.Time   `json:"timestamp"`
}

func NewNotificationEvent(eventType EventType, targetUserID int64, message string, data interface{}) NotificationEvent {
	return NotificationEvent{
		Type:         eventType,
		TargetUserID: targetUserID,
		Message:      message,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	}
}

// BusEnvelope carries an event between instances over the fan-out bus.
type BusEnvelope struct {
	ID        string            `json:"id"`
	Origin    string            `json:"origin"`
	Broadcast bool              `json:"broadcast"`
	Event     NotificationEvent `json:"event"`
}

// AssignmentGradedEvent is published by the grading workflow after it commits
// a grade change.
type AssignmentGradedEvent struct {
	AssignmentID int64 `json:"assignmentId"`
	CourseID     int64 `json:"courseId"`
	StudentID    int64 `json:"studentId"`
	Timestamp    int64 `json:"timestamp"`
}
