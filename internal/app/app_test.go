package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nurudeenbika/university-crm-backend/internal/config"
	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:        ":0",
			RequestTimeout: 5 * time.Second,
		},
		Database:      config.DatabaseConfig{Driver: config.DriverMemory},
		Notifications: config.NotificationsConfig{Fanout: config.FanoutLocal, PushTimeout: time.Second, SendBuffer: 8},
		WebSocket:     config.WebSocketConfig{WriteWait: time.Second, PongWait: 10 * time.Second, MaxMessageSize: 1024},
		CORS:          config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"}},
	}
}

func request(t *testing.T, srv *httptest.Server, userID, role, method, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-User-Role", role)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewRejectsPostgresWithoutDatabase(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = config.DriverPostgres

	_, err := New(cfg, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestEnrollmentEventReachesWebSocket(t *testing.T) {
	a, err := New(memoryConfig(), zerolog.Nop(), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]int64{"userId": 10}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ack map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "joined", ack["type"])

	resp := request(t, srv, "1", "admin", http.MethodPost, "/api/v1/courses", map[string]interface{}{
		"title":       "Machine Learning",
		"lecturer_id": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data models.Course `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = request(t, srv, "10", "student", http.MethodPost, "/api/v1/enrollments/enroll", map[string]int64{
		"course_id": created.Data.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var event models.NotificationEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventEnrollmentCreated, event.Type)
	assert.Equal(t, int64(10), event.TargetUserID)

	health, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	var body struct {
		Presence struct {
			Users       int `json:"online_users"`
			Connections int `json:"connections"`
		} `json:"presence"`
	}
	require.NoError(t, json.NewDecoder(health.Body).Decode(&body))
	assert.Equal(t, 1, body.Presence.Users)
	assert.Equal(t, 1, body.Presence.Connections)
}
