package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{level: "debug", debugSeen: true, infoSeen: true},
		{level: "info", infoSeen: true},
		{level: "warn"},
		{level: "bogus", infoSeen: true},
		{level: "", infoSeen: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(&buf, tt.level, false, true)

			log.Debug().Msg("debug")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte(`"debug"`)))

			buf.Reset()
			log.Info().Msg("info")
			assert.Equal(t, tt.infoSeen, buf.Len() > 0)
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "info", false, true)
	log.Info().Int64("enrollment_id", 7).Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "university-crm", entry["service"])
	assert.Equal(t, float64(7), entry["enrollment_id"])
}
