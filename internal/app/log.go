package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// aclHandler is a slog.Handler that writes one tab-separated line per record:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// runID ties every line of one CLI invocation together.
type aclHandler struct {
	w     io.Writer
	level slog.Level
	runID string
	attrs []slog.Attr
}

func (h *aclHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *aclHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05.000Z")

	line := fmt.Sprintf("%s\t%s\t%s\t%s", ts, r.Level, h.runID, r.Message)
	for _, a := range h.attrs {
		line += formatAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += formatAttr(a)
		return true
	})

	// Single write per record: propagation workers log concurrently.
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

func formatAttr(a slog.Attr) string {
	return fmt.Sprintf("\t%s=%v", a.Key, a.Value.Resolve())
}

func (h *aclHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &aclHandler{
		w:     h.w,
		level: h.level,
		runID: h.runID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *aclHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a logger that writes to logDir/acl.log and to stderr.
// Debug records go to the file only. The returned file must be closed by the caller.
func newLogger(logDir, runID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "acl.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &fanoutHandler{handlers: []slog.Handler{
		&aclHandler{w: f, level: slog.LevelDebug, runID: runID},
		&aclHandler{w: os.Stderr, level: slog.LevelInfo, runID: runID},
	}}
	return slog.New(handler), f, nil
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: out}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &fanoutHandler{handlers: out}
}

// slogAdapter wraps *slog.Logger to satisfy acl.Logger.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
