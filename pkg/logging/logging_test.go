package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "")

	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Expected info to be disabled at warn level")
	}
	if !l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Expected warn to be enabled")
	}

	if d := New(&buf, "bogus", ""); d.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected unknown level to fall back to info")
	}
}

func TestNew_Format(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "", "JSON").Info("Move accepted", "floor", "andar_2")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["floor"] != "andar_2" {
		t.Errorf("Expected floor andar_2, got %v", rec["floor"])
	}

	buf.Reset()
	New(&buf, "debug", "text").Debug("Tick", "tick", 3)
	if out := buf.String(); !strings.Contains(out, "msg=Tick") || !strings.Contains(out, "tick=3") {
		t.Errorf("Expected text record, got %q", out)
	}
}
