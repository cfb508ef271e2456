package httpd

import (
	"net/http"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

// Broadcast pushes an announcement to every live connection.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req models.BroadcastRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	c := caller(r)
	event := models.NewNotificationEvent(models.EventAnnouncement, 0, req.Message, req.Data)
	h.notifier.NotifyAll(r.Context(), event)

	h.logger.Info().
		Int64("sent_by", c.UserID).
		Msg("Announcement broadcast")

	writeSuccessStatus(w, http.StatusAccepted, event)
}
