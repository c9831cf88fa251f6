// Package diag sets up structured logging and classifies errors for reports.
package diag

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Event attribute keys.
const (
	KeyComp  = "comp"
	KeyStage = "stage"
	KeyCode  = "code"
	KeyDurMS = "dur_ms"
	KeyCount = "count"

	KeyBoardID = "board_id"
	KeyFile    = "file"
	KeyFormat  = "format"
)

// Stages.
const (
	StageStart  = "start"
	StageFinish = "finish"
	StageError  = "error"
)

// ParseLevel maps debug, info, warn or error onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("diag: unknown log level %q", s)
}

// NewLogger returns a logger writing to w with a text or json handler.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("diag: unknown log format %q", format)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Timer measures one component stage from start to finish.
type Timer struct {
	l    *slog.Logger
	comp string
	t0   time.Time
	now  func() time.Time
}

// Start logs a start event for comp and returns a timer for its finish.
func Start(l *slog.Logger, comp, msg string, attrs ...any) *Timer {
	l.Info(msg, append([]any{KeyComp, comp, KeyStage, StageStart}, attrs...)...)
	return &Timer{l: l, comp: comp, t0: time.Now(), now: time.Now}
}

func (t *Timer) elapsed() int64 {
	return t.now().Sub(t.t0).Milliseconds()
}

// Finish logs a finish event with the elapsed time and a result count.
func (t *Timer) Finish(msg string, count int, attrs ...any) {
	if t == nil || t.l == nil {
		return
	}
	t.l.Info(msg, append([]any{KeyComp, t.comp, KeyStage, StageFinish, KeyDurMS, t.elapsed(), KeyCount, count}, attrs...)...)
}

// Fail logs an error event classified from err.
func (t *Timer) Fail(msg string, err error, attrs ...any) {
	if t == nil || t.l == nil {
		return
	}
	t.l.Error(msg, append([]any{KeyComp, t.comp, KeyStage, StageError, KeyCode, string(Classify(err)), KeyDurMS, t.elapsed(), "err", err}, attrs...)...)
}
