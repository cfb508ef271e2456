package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
)

var ErrConnectionClosed = errors.New("connection closed")

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// joinMessage binds the connection to a user.
type joinMessage struct {
	UserID int64 `json:"userId"`
}

type controlMessage struct {
	Type    string `json:"type"`
	UserID  int64  `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Connection is one live WebSocket. Pushes are queued on a bounded buffer
// that a single writer goroutine drains.
type Connection struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	cfg    Config
	logger zerolog.Logger

	closeOnce sync.Once
}

func newConnection(id string, ws *websocket.Conn, cfg Config, logger zerolog.Logger) *Connection {
	return &Connection{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		cfg:    cfg,
		logger: logger.With().Str("conn_id", id).Logger(),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Push queues payload for the writer. It fails once the connection is closed
// or when the buffer stays full until ctx is done.
func (c *Connection) Push(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			err = c.ws.Close()
		}
	})
	return err
}

func (c *Connection) pushControl(msg controlMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteWait)
	defer cancel()

	if err := c.Push(ctx, payload); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to queue control message")
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait),
			)
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("WebSocket ping failed")
				return
			}
		}
	}
}

// readPump handles join messages until the peer goes away, then removes the
// connection from the registry.
func (c *Connection) readPump(registry *presence.Registry) {
	defer func() {
		registry.Unregister(c)
		c.Close()
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		var join joinMessage
		if err := json.Unmarshal(data, &join); err != nil || join.UserID <= 0 {
			c.pushControl(controlMessage{Type: "error", Message: "expected {\"userId\": <id>}"})
			continue
		}

		registry.Register(join.UserID, c)
		c.logger.Info().Int64("user_id", join.UserID).Msg("Connection joined")
		c.pushControl(controlMessage{Type: "joined", UserID: join.UserID})
	}
}
