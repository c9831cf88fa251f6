package diag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"key", fmt.Errorf("boardview: encrypted: %w", model.ErrMissingOrInvalidKey), CodeKeyMissing},
		{"unsupported", model.ErrUnsupportedFormat, CodeUnsupportedFormat},
		{"header", fmt.Errorf("wrap: %w", model.ErrMissingHeader), CodeParseFailed},
		{"no nets", model.ErrNoNetsOrRefdes, CodeParseFailed},
		{"io", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, CodeIO},
		{"other", errors.New("other"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("boardview: encrypted-container: %w", model.ErrMissingOrInvalidKey), "xzzpcb_missing_or_invalid_key"},
		{fmt.Errorf("boardview: brd: %w", model.ErrNoNetsOrRefdes), "no_nets_or_refdes_found"},
		{errors.New("disk on fire"), "disk on fire"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown format")
	}

	var buf bytes.Buffer
	l, err := NewLogger("info", "json", &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Debug("hidden")
	l.Info("shown", "k", 1)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if ev["msg"] != "shown" || ev["k"] != float64(1) {
		t.Errorf("event = %v", ev)
	}
}

func TestTimer(t *testing.T) {
	var buf bytes.Buffer
	l, _ := NewLogger("debug", "json", &buf)
	tm := Start(l, "ingest", "ingest start", "board_id", "B1")
	base := tm.t0
	tm.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	tm.Finish("ingest done", 3)
	tm.Fail("ingest failed", model.ErrMissingOrInvalidKey)

	var events []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev map[string]any
		if err := json.Unmarshal([]byte(ln), &ev); err != nil {
			t.Fatalf("not JSON: %q", ln)
		}
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0][KeyStage] != StageStart || events[0]["board_id"] != "B1" {
		t.Errorf("start = %v", events[0])
	}
	if events[1][KeyDurMS] != float64(1500) || events[1][KeyCount] != float64(3) {
		t.Errorf("finish = %v", events[1])
	}
	if events[2][KeyCode] != string(CodeKeyMissing) || events[2]["level"] != "ERROR" {
		t.Errorf("error = %v", events[2])
	}

	var nilTimer *Timer
	nilTimer.Finish("noop", 0)
}
