package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"profilegrab/pkg/config"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithField("platform", "threads").
		WithFields(map[string]interface{}{"found": 12, "headless": true}).
		Info("scrolling")

	out := buf.String()
	for _, want := range []string{"scrolling", `"platform":"threads"`, `"found":12`, `"headless":true`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	parent := bufferLogger(&buf)
	_ = parent.WithField("child", "yes")

	parent.Info("plain")
	if strings.Contains(buf.String(), "child") {
		t.Errorf("parent logger picked up child field: %s", buf.String())
	}
}

func TestWithError(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	if l.WithError(nil) != Logger(l) {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("socket closed")).Error("fetch failed")
	if !strings.Contains(buf.String(), "socket closed") {
		t.Errorf("error text missing from %q", buf.String())
	}
}

func TestForRun(t *testing.T) {
	tl := NewTestLogger()
	ForRun(tl, "run-1", "instagram", "someone").Info("started")

	msgs := tl.GetMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Fields["run_id"] != "run-1" || msgs[0].Fields["username"] != "someone" {
		t.Errorf("unexpected fields: %v", msgs[0].Fields)
	}
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("a", 1).WithError(errors.New("boom")).Warn("child")
	tl.Info("root")

	if got := len(tl.GetMessages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
	warn := tl.GetMessagesByLevel("WARN")
	if len(warn) != 1 || warn[0].Error == nil || warn[0].Fields["a"] != 1 {
		t.Errorf("unexpected warn record: %+v", warn)
	}
	if !tl.Contains("boom") {
		t.Error("Contains should see error text")
	}
	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear should drop messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}
}
