package service

import (
	"context"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

// Notifier delivers workflow events. Implementations swallow delivery
// failures; a workflow call never fails because nobody is listening.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent)
	NotifyAll(ctx context.Context, event models.NotificationEvent)
}
