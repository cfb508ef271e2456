package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
)

type Handler struct {
	upgrader websocket.Upgrader
	registry *presence.Registry
	cfg      Config
	logger   zerolog.Logger
}

func NewHandler(registry *presence.Registry, cfg Config, logger zerolog.Logger) *Handler {
	h := &Handler{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	conn := newConnection(uuid.NewString(), socket, h.cfg, h.logger)
	h.logger.Debug().Str("conn_id", conn.ID()).Msg("WebSocket connected")

	go conn.writePump()
	conn.readPump(h.registry)

	h.logger.Debug().Str("conn_id", conn.ID()).Msg("WebSocket disconnected")
}
