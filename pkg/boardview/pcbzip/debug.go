package pcbzip

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type debugChunk struct {
	Offset          int            `json:"offset"`
	Method          Method         `json:"method"`
	DecompressedLen int            `json:"decompressed_len"`
	PrintableRatio  float64        `json:"printable_ratio"`
	Score           int            `json:"score"`
	MarkerHits      map[string]int `json:"marker_hits"`
	Preview         string         `json:"preview"`
}

type debugSummary struct {
	Name        string       `json:"name"`
	Dense       bool         `json:"dense"`
	JSONObjects int          `json:"json_objects"`
	Chunks      []debugChunk `json:"chunks"`
}

// WriteDump writes a summary of the n best chunks plus their payloads into
// dir as name_summary.json. Text chunks are written as .txt, binary chunks
// as .bin.
func WriteDump(dir, name string, a *Analysis, n int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pcbzip: debug dir: %w", err)
	}
	ranked := a.Ranked()
	top := ranked[:min(n, len(ranked))]

	sum := debugSummary{Name: name, Dense: a.Dense, JSONObjects: len(a.JSON)}
	for i, c := range top {
		sum.Chunks = append(sum.Chunks, debugChunk{
			Offset:          c.Offset,
			Method:          c.Method,
			DecompressedLen: c.DecompressedLen,
			PrintableRatio:  c.PrintableRatio,
			Score:           c.Score,
			MarkerHits:      c.MarkerHits,
			Preview:         c.Preview,
		})
		ext, payload := "bin", c.Data
		if c.LikelyText {
			ext, payload = "txt", []byte(c.Text())
		}
		file := fmt.Sprintf("%s_chunk%02d_%s_0x%x.%s", name, i+1, c.Method, c.Offset, ext)
		if err := os.WriteFile(filepath.Join(dir, file), payload, 0o644); err != nil {
			return fmt.Errorf("pcbzip: write %s: %w", file, err)
		}
	}
	blob, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("pcbzip: encode summary: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name+"_summary.json"), blob, 0o644)
}
