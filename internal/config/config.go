// Package config loads the otbv configuration file and applies environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bintable"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/pcbzip"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/xzz"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/guardrail"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
)

// Environment overrides.
const (
	EnvDataDir  = "OTBV_DATA_DIR"
	EnvLogLevel = "OTBV_LOG_LEVEL"
)

// Config controls decoding, caching and logging.
type Config struct {
	// DataDir holds the per-board caches.
	DataDir string `yaml:"data_dir"`

	Log       LogConfig       `yaml:"log"`
	Scan      ScanConfig      `yaml:"scan"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Ranking   RankingConfig   `yaml:"ranking"`
	XZZ       XZZConfig       `yaml:"xzz"`
	Memo      MemoConfig      `yaml:"memo"`
}

// LogConfig selects the log level (debug, info, warn, error) and the
// handler format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScanConfig bounds the compressed-container scanner.
type ScanConfig struct {
	MaxStreams    int  `yaml:"max_streams"`
	MaxTotalOut   int  `yaml:"max_total_out"`
	MaxStreamOut  int  `yaml:"max_stream_out"`
	MaxStreamIn   int  `yaml:"max_stream_in"`
	Dense         bool `yaml:"dense"`
	MinPinRecords int  `yaml:"min_pin_records"`
}

type GuardrailConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

type RankingConfig struct {
	PerNetCap int `yaml:"per_net_cap"`
}

// XZZConfig supplies a container key ahead of the config-file and built-in
// fallbacks. The BOARDVIEW_XZZPCB_KEY and XZZPCB_KEY environment variables
// still take precedence.
type XZZConfig struct {
	Key       string   `yaml:"key"`
	ConfPaths []string `yaml:"conf_paths"`
}

// MemoConfig enables the parse memo when Dir is set.
type MemoConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with the scanner limits and thresholds the
// decoders were tuned with.
func DefaultConfig() *Config {
	scan := pcbzip.DefaultOptions()
	return &Config{
		DataDir: "./data",
		Log:     LogConfig{Level: "info", Format: "text"},
		Scan: ScanConfig{
			MaxStreams:    scan.MaxStreams,
			MaxTotalOut:   scan.MaxTotalOut,
			MaxStreamOut:  scan.MaxStreamOut,
			MaxStreamIn:   scan.MaxStreamIn,
			Dense:         false,
			MinPinRecords: bintable.DefaultMinPinRecords,
		},
		Guardrail: GuardrailConfig{FuzzyThreshold: guardrail.DefaultFuzzyThreshold},
		Ranking:   RankingConfig{PerNetCap: netrefs.DefaultPerNetCap},
		XZZ:       XZZConfig{ConfPaths: xzz.DefaultConfPaths()},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads only the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvDataDir)); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if pcbzip.EnvEnabled(getenv, pcbzip.EnvDenseScan) {
		c.Scan.Dense = true
	}
}

// Validate checks the configuration and fills zero limits with defaults.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "":
		c.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must be set")
	}

	def := DefaultConfig()
	for _, f := range []struct {
		name string
		v    *int
		def  int
	}{
		{"scan.max_streams", &c.Scan.MaxStreams, def.Scan.MaxStreams},
		{"scan.max_total_out", &c.Scan.MaxTotalOut, def.Scan.MaxTotalOut},
		{"scan.max_stream_out", &c.Scan.MaxStreamOut, def.Scan.MaxStreamOut},
		{"scan.max_stream_in", &c.Scan.MaxStreamIn, def.Scan.MaxStreamIn},
		{"scan.min_pin_records", &c.Scan.MinPinRecords, def.Scan.MinPinRecords},
		{"ranking.per_net_cap", &c.Ranking.PerNetCap, def.Ranking.PerNetCap},
	} {
		if *f.v < 0 {
			return fmt.Errorf("config: %s must not be negative", f.name)
		}
		if *f.v == 0 {
			*f.v = f.def
		}
	}
	if c.Scan.MaxStreamOut > c.Scan.MaxTotalOut {
		return fmt.Errorf("config: scan.max_stream_out (%d) exceeds scan.max_total_out (%d)",
			c.Scan.MaxStreamOut, c.Scan.MaxTotalOut)
	}

	switch t := c.Guardrail.FuzzyThreshold; {
	case t == 0:
		c.Guardrail.FuzzyThreshold = guardrail.DefaultFuzzyThreshold
	case t < 0 || t > 1:
		return fmt.Errorf("config: guardrail.fuzzy_threshold must be in (0, 1], got %v", t)
	}
	return nil
}

// PCBOptions returns scanner options for the compressed-container decoder.
func (c *Config) PCBOptions() pcbzip.Options {
	opts := pcbzip.DefaultOptions()
	opts.MaxStreams = c.Scan.MaxStreams
	opts.MaxTotalOut = c.Scan.MaxTotalOut
	opts.MaxStreamOut = c.Scan.MaxStreamOut
	opts.MaxStreamIn = c.Scan.MaxStreamIn
	opts.Dense = opts.Dense || c.Scan.Dense
	opts.MinPinRecords = c.Scan.MinPinRecords
	return opts
}

// XZZDecoder returns an encrypted-container decoder using the configured
// key sources.
func (c *Config) XZZDecoder() *xzz.Decoder {
	d := xzz.NewDecoder()
	d.Key = c.XZZ.Key
	if c.XZZ.ConfPaths != nil {
		d.ConfPaths = c.XZZ.ConfPaths
	}
	return d
}

// Decoder returns a boardview decoder wired with this configuration.
func (c *Config) Decoder(logger *slog.Logger) *boardview.Decoder {
	x := c.XZZDecoder()
	x.Logger = logger
	d := boardview.NewDecoder()
	d.PCB = c.PCBOptions()
	d.PCB.Logger = logger
	d.XZZ = x
	d.Logger = logger
	return d
}
