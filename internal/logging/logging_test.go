package logging

import (
	"bytes"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			appName: "territory_engine",
			want:    filepath.Join("logs", "territory_engine.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			appName: "territory_engine",
			want:    filepath.Join(".", "logs", "territory_engine.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "territory"),
			appName: "territory_engine",
			want:    filepath.Join("/var", "log", "territory", "territory_engine.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewZerolog(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
	}{
		{"debug", true},
		{"DEBUG", true},
		{"info", false},
		{"", false},
		{"nonsense", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewZerolog(&buf, tt.level)
			log.Debug().Msg("debug line")
			log.Info().Str("path", "/tmp/x.db").Msg("info line")

			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug line")))

			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			var entry map[string]any
			assert.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
			assert.Equal(t, "info line", entry["message"])
			assert.Equal(t, "/tmp/x.db", entry["path"])
			assert.Contains(t, entry, "time")
		})
	}
}

func TestNewGraylogWriter(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	w, err := NewGraylogWriter(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewGraylogWriter: %v", err)
	}
	defer w.Close()
	assert.Equal(t, GraylogFacility, w.Facility)

	if _, err := w.Write([]byte("zone captured\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8192)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("no GELF packet received: %v", err)
	}
	assert.Greater(t, n, 0)
}
