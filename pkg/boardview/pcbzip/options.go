package pcbzip

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bintable"
)

// Environment switches read by DefaultOptions.
const (
	EnvDenseScan = "BOARDVIEW_PCB_DENSE_SCAN"
	EnvDebug     = "BOARDVIEW_PCB_DEBUG"
	EnvDebugDir  = "BOARDVIEW_PCB_DEBUG_DIR"
)

// Options bound the work spent on one container.
type Options struct {
	MaxStreams    int // candidate offsets tried in the sparse pass
	MaxTotalOut   int // decompressed bytes across all streams
	MaxStreamOut  int // decompressed bytes for one stream
	MaxStreamIn   int // compressed bytes fed to one stream
	Dense         bool
	MinPinRecords int
	Logger        *slog.Logger

	// DebugDir, when set, receives a summary and the top chunks of every
	// parse. DebugName is the file stem used there.
	DebugDir  string
	DebugName string
}

// DefaultOptions returns the limits used when none are configured. Dense
// follows EnvDenseScan; DebugDir follows EnvDebugDir when EnvDebug is on.
func DefaultOptions() Options {
	o := Options{
		MaxStreams:    200,
		MaxTotalOut:   64 << 20,
		MaxStreamOut:  8 << 20,
		MaxStreamIn:   16 << 20,
		Dense:         EnvEnabled(os.Getenv, EnvDenseScan),
		MinPinRecords: bintable.DefaultMinPinRecords,
	}
	if EnvEnabled(os.Getenv, EnvDebug) {
		o.DebugDir = strings.TrimSpace(os.Getenv(EnvDebugDir))
	}
	return o
}

// EnvEnabled reports whether the variable key is set to 1, true, yes or on.
func EnvEnabled(getenv func(string) string, key string) bool {
	switch strings.ToLower(strings.TrimSpace(getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (o *Options) defaults() {
	if o.MaxStreams <= 0 {
		o.MaxStreams = 200
	}
	if o.MaxTotalOut <= 0 {
		o.MaxTotalOut = 64 << 20
	}
	if o.MaxStreamOut <= 0 {
		o.MaxStreamOut = 8 << 20
	}
	if o.MaxStreamIn <= 0 {
		o.MaxStreamIn = 16 << 20
	}
	if o.MinPinRecords <= 0 {
		o.MinPinRecords = bintable.DefaultMinPinRecords
	}
	if o.DebugName == "" {
		o.DebugName = "container"
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
