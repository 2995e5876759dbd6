package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestACLHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "run-123",
			level:   slog.LevelInfo,
			message: "grant created",
			want:    "2024-06-15T14:30:45.000Z\tINFO\trun-123\tgrant created\n",
		},
		{
			name:    "warn level",
			runID:   "run-456",
			level:   slog.LevelWarn,
			message: "audit write failed",
			want:    "2024-06-15T14:30:45.000Z\tWARN\trun-456\taudit write failed\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelInfo,
			message: "recursive share finished",
			attrs:   []slog.Attr{slog.String("item", "docs"), slog.Int("granted", 42)},
			want:    "2024-06-15T14:30:45.000Z\tINFO\trun-789\trecursive share finished\titem=docs\tgranted=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &aclHandler{w: &buf, level: slog.LevelDebug, runID: tt.runID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestACLHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &aclHandler{w: &buf, runID: "run-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "cleanup")}).(*aclHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "sweep", 0)
	r.AddAttrs(slog.Int("batch", 3))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "component=cleanup", "batch=3"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestACLHandler_Enabled(t *testing.T) {
	h := &aclHandler{level: slog.LevelInfo}

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFanoutHandler(t *testing.T) {
	var file, term bytes.Buffer
	h := &fanoutHandler{handlers: []slog.Handler{
		&aclHandler{w: &file, level: slog.LevelDebug, runID: "r"},
		&aclHandler{w: &term, level: slog.LevelInfo, runID: "r"},
	}}
	logger := slog.New(h).With("component", "test")

	logger.Debug("low")
	logger.Info("high")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file got %d lines, want 2: %q", got, file.String())
	}
	if strings.Contains(term.String(), "low") {
		t.Errorf("terminal received debug record: %q", term.String())
	}
	if !strings.Contains(term.String(), "high\tcomponent=test") {
		t.Errorf("terminal output = %q, want the info record with attrs", term.String())
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-run")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Debug("written to file only", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, "acl.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test-run\twritten to file only\tk=v") {
		t.Errorf("log file = %q, want the debug record", data)
	}
}
