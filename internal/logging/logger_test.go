package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelDebug)
	l.SetJSON(false)
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufLogger()
	l.SetLevel(LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown warn")
	l.Error("shown error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "shown warn") || !strings.Contains(out, "shown error") {
		t.Errorf("expected warn and error lines, got %q", out)
	}
}

func TestFormatArgs(t *testing.T) {
	l, buf := newBufLogger()

	l.Info("imported %d objects from %s", 3, "bracket.step")
	if !strings.Contains(buf.String(), "imported 3 objects from bracket.step") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWithFieldsAppearInOutput(t *testing.T) {
	l, buf := newBufLogger()

	l.WithField("component", "runtime").WithFields(map[string]interface{}{
		"node_id": "n1",
	}).Info("propagated")

	out := buf.String()
	for _, want := range []string{"component=runtime", "node_id=n1", "propagated"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	l, buf := newBufLogger()

	child := l.WithField("component", "api")
	_ = child

	l.Info("parent line")
	if strings.Contains(buf.String(), "component=api") {
		t.Errorf("parent logger picked up child field: %q", buf.String())
	}
}

func TestJSONOutput(t *testing.T) {
	l, buf := newBufLogger()
	l.SetJSON(true)

	l.WithField("project_id", "p1").Warn("slow save")

	var e struct {
		Timestamp string                 `json:"ts"`
		Level     string                 `json:"level"`
		Message   string                 `json:"msg"`
		Fields    map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if e.Level != "WARN" || e.Message != "slow save" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields["project_id"] != "p1" {
		t.Errorf("fields = %v", e.Fields)
	}
	if e.Timestamp == "" {
		t.Error("missing timestamp")
	}
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("empty context returned %q", got)
	}
	ctx = WithCorrelationID(ctx, "abc123")
	if got := CorrelationID(ctx); got != "abc123" {
		t.Errorf("CorrelationID = %q, want abc123", got)
	}
}
