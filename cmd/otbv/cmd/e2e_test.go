package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const boardText = `BVRAW_FORMAT_3
PART_NAME U1
PIN_NET PPBUS_AON
PIN_NET PP3V3_S0_SENSE_FILTERED
PART_END
PART_NAME C7
PIN_NET PPBUS_AON
PART_END
PART_NAME TP1
PIN_NET PPBUS_AON
PART_END
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// TestBoardWorkflowE2E ingests a board and runs every query command
// against its caches.
func TestBoardWorkflowE2E(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(t.TempDir(), "data")
	file := filepath.Join(dir, "820-02020.bvr")
	if err := os.WriteFile(file, []byte(boardText), 0o644); err != nil {
		t.Fatal(err)
	}

	// Reset flags to prevent accumulation between runs
	parseJSON = false
	ingestJSON = false
	ingestMemo = ""
	guardItems = ""
	guardNotes = nil
	exportOut = ""

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "detect",
			args:        []string{"detect", file},
			wantContain: []string{"structured-text"},
		},
		{
			name:        "parse",
			args:        []string{"parse", file},
			wantContain: []string{"BVRAW_FORMAT_3", "Nets:       2", "Components: 3", "PPBUS_AON"},
		},
		{
			name:        "ingest",
			args:        []string{"ingest", "--data-dir", data, "--board", "820-02020", dir},
			wantContain: []string{"Status:     success", "Nets:       2", "Links:      4"},
		},
		{
			name:        "points",
			args:        []string{"points", "--data-dir", data, "--board", "820-02020", "ppbus.aon"},
			wantContain: []string{"PPBUS_AON (boardviews): TP1 C7 U1"},
		},
		{
			name:        "points limited",
			args:        []string{"points", "--data-dir", data, "--board", "820-02020", "-k", "1", "PPBUS_AON"},
			wantContain: []string{": TP1\n"},
		},
		{
			name:    "points unknown net",
			args:    []string{"points", "--data-dir", data, "--board", "820-02020", "-k", "5", "PP5V_S0"},
			wantErr: true,
		},
		{
			name: "guard",
			args: []string{"guard", "--data-dir", data, "--board", "820-02020",
				"measure PPBUS_G3H and PP3V3_S0_SENSE_FILTRED near U1 and U99"},
			wantContain: []string{
				`"source_reason": "boardview_success"`,
				`"to": "PPBUS_AON"`,
				`"to": "PP3V3_S0_SENSE_FILTERED"`,
				`"U99"`,
				"[UNKNOWN_REFDES]",
			},
		},
		{
			name:        "rail",
			args:        []string{"rail", "--data-dir", data, "--board", "820-02020"},
			wantContain: []string{"PPBUS_AON"},
		},
		{
			name:        "export kicad from cache",
			args:        []string{"export", "--data-dir", data, "--board", "820-02020", "--format", "kicad"},
			wantContain: []string{"(export (version D)", "(source 820-02020)", "(name PPBUS_AON)", "(node (ref TP1))"},
		},
		{
			name:    "export unknown format",
			args:    []string{"export", "--format", "gerber", file},
			wantErr: true,
		},
		{
			name:    "ingest missing board flag",
			args:    []string{"ingest", dir},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestBoard, pointsBoard, guardBoard, exportBoard = "", "", "", ""
			exportFormat = "kicad"
			pointsK = 5

			output, err := run(t, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

func TestIngestFailureE2E(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(filepath.Join(dir, "board.cad"), []byte("opaque"), 0o644); err != nil {
		t.Fatal(err)
	}
	ingestJSON = false
	ingestMemo = ""

	output, err := run(t, "ingest", "--data-dir", data, "--board", "b1", dir)
	if err == nil {
		t.Fatalf("Expected error for unsupported boardview\nOutput: %s", output)
	}
	if !strings.Contains(output, "unsupported_format") {
		t.Errorf("Output missing status:\n%s", output)
	}
	if _, err := os.Stat(filepath.Join(data, "ingest_reports", "b1.json")); err != nil {
		t.Errorf("report not written: %v", err)
	}
}
