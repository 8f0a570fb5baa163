package infra

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		appEnv    string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "development logs debug", appEnv: "development", wantDebug: true, wantInfo: true},
		{name: "production logs info", appEnv: "production", wantInfo: true},
		{name: "level overrides env", appEnv: "production", level: "debug", wantDebug: true, wantInfo: true},
		{name: "warn hides info", appEnv: "development", level: "warn"},
		{name: "unknown level keeps default", appEnv: "production", level: "chatty", wantInfo: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tc.appEnv, tc.level)
			l.Debug().Msg("debug line")
			l.Info().Msg("info line")
			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tc.wantDebug {
				t.Fatalf("debug logged = %v, want %v: %s", got, tc.wantDebug, out)
			}
			if got := strings.Contains(out, "info line"); got != tc.wantInfo {
				t.Fatalf("info logged = %v, want %v: %s", got, tc.wantInfo, out)
			}
		})
	}
}

func TestNewLoggerTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Info().Str("job_id", "j1").Msg("stage done")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["service"] != "deckgen" || line["job_id"] != "j1" || line["time"] == nil {
		t.Fatalf("log line = %v", line)
	}
}
