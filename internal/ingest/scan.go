package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

// Extensions are always recorded as candidates, even when their content is
// not recognized.
var Extensions = []string{".bvr", ".brd", ".pcb", ".tvw", ".bv", ".bdv", ".cad"}

// Candidate is one file found while scanning for boardviews.
type Candidate struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Dialect string `json:"dialect,omitempty"`
	Size    int64  `json:"size"`

	det boardview.Detection
}

// Detection returns the detected format of the candidate.
func (c Candidate) Detection() boardview.Detection { return c.det }

// priority orders formats from most to least trustworthy.
func priority(f model.Format) int {
	switch f {
	case model.StructuredText:
		return 0
	case model.BrdV1, model.BrdV2:
		return 1
	case model.EncryptedContainer:
		return 2
	case model.CompressedContainer:
		return 3
	case model.StringHeuristic:
		return 4
	}
	return 5
}

func hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Scan walks paths (files or directories) and returns the boardview
// candidates sorted by format priority, then path. Files without a known
// extension are kept only when their content is recognized.
func Scan(paths []string) ([]Candidate, error) {
	var out []Candidate
	seen := make(map[string]struct{})
	add := func(path string, size int64) error {
		if _, ok := seen[path]; ok {
			return nil
		}
		det, err := boardview.DetectFile(path)
		if err != nil {
			return err
		}
		if det.Format == model.Unsupported && !hasExtension(path) {
			return nil
		}
		seen[path] = struct{}{}
		out = append(out, Candidate{
			Path:    path,
			Format:  det.Format.String(),
			Dialect: det.Dialect,
			Size:    size,
			det:     det,
		})
		return nil
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		if !info.IsDir() {
			if err := add(root, info.Size()); err != nil {
				return nil, fmt.Errorf("ingest: %w", err)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return add(path, fi.Size())
		})
		if err != nil {
			return nil, fmt.Errorf("ingest: scan %s: %w", root, err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].det.Format), priority(out[j].det.Format)
		if pi != pj {
			return pi < pj
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}
