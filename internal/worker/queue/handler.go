package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

// ErrMalformed marks messages that can never be processed and must not be
// requeued.
var ErrMalformed = errors.New("malformed message")

// Recomputer recomputes an enrollment's final grade from its graded work.
type Recomputer interface {
	RecomputeFinalGrade(ctx context.Context, courseID, studentID int64) error
}

type MessageHandler interface {
	HandleAssignmentGraded(ctx context.Context, event models.AssignmentGradedEvent) error
	ProcessMessage(ctx context.Context, body []byte) error
}

type messageHandler struct {
	recomputer Recomputer
	logger     zerolog.Logger
}

func NewMessageHandler(recomputer Recomputer, logger zerolog.Logger) MessageHandler {
	return &messageHandler{
		recomputer: recomputer,
		logger:     logger,
	}
}

func (h *messageHandler) HandleAssignmentGraded(ctx context.Context, event models.AssignmentGradedEvent) error {
	h.logger.Debug().
		Int64("assignment_id", event.AssignmentID).
		Int64("course_id", event.CourseID).
		Int64("student_id", event.StudentID).
		Msg("Handling assignment graded event")

	if err := h.recomputer.RecomputeFinalGrade(ctx, event.CourseID, event.StudentID); err != nil {
		return fmt.Errorf("failed to recompute final grade: %w", err)
	}
	return nil
}

func (h *messageHandler) ProcessMessage(ctx context.Context, body []byte) error {
	var event models.AssignmentGradedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if event.CourseID <= 0 || event.StudentID <= 0 {
		return fmt.Errorf("%w: courseId and studentId are required", ErrMalformed)
	}

	return h.HandleAssignmentGraded(ctx, event)
}
