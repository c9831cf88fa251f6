package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bintable"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/guardrail"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Guardrail.FuzzyThreshold != guardrail.DefaultFuzzyThreshold {
		t.Errorf("fuzzy threshold = %v", cfg.Guardrail.FuzzyThreshold)
	}
	if cfg.Scan.MinPinRecords != bintable.DefaultMinPinRecords {
		t.Errorf("min pin records = %d", cfg.Scan.MinPinRecords)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv("BOARDVIEW_PCB_DENSE_SCAN", "")

	path := filepath.Join(t.TempDir(), "otbv.yaml")
	yml := `data_dir: /srv/boards
log:
  level: DEBUG
  format: json
scan:
  max_streams: 50
guardrail:
  fuzzy_threshold: 0.9
xzz:
  key: "0123456789ABCDEF"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/srv/boards" || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Scan.MaxStreams != 50 || cfg.Scan.MaxTotalOut != DefaultConfig().Scan.MaxTotalOut {
		t.Errorf("scan = %+v", cfg.Scan)
	}
	if cfg.Guardrail.FuzzyThreshold != 0.9 {
		t.Errorf("threshold = %v", cfg.Guardrail.FuzzyThreshold)
	}
	if d := cfg.XZZDecoder(); d.Key != "0123456789ABCDEF" {
		t.Errorf("xzz key = %q", d.Key)
	}
	if opts := cfg.PCBOptions(); opts.MaxStreams != 50 {
		t.Errorf("pcb options = %+v", opts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(env(map[string]string{
		EnvDataDir:                 "/tmp/otbv",
		EnvLogLevel:                "warn",
		"BOARDVIEW_PCB_DENSE_SCAN": "yes",
	}))
	if cfg.DataDir != "/tmp/otbv" || cfg.Log.Level != "warn" || !cfg.Scan.Dense {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"negative limit", func(c *Config) { c.Scan.MaxStreams = -1 }, true},
		{"zero limit filled", func(c *Config) { c.Scan.MaxStreams = 0 }, false},
		{"stream above total", func(c *Config) { c.Scan.MaxStreamOut = c.Scan.MaxTotalOut + 1 }, true},
		{"threshold above one", func(c *Config) { c.Guardrail.FuzzyThreshold = 1.5 }, true},
		{"zero threshold filled", func(c *Config) { c.Guardrail.FuzzyThreshold = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (cfg.Scan.MaxStreams <= 0 || cfg.Guardrail.FuzzyThreshold <= 0) {
				t.Errorf("zero fields not filled: %+v", cfg)
			}
		})
	}
}
