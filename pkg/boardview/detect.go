// Package boardview detects which decoder handles a boardview file and
// dispatches to it. Every decoder returns a model.ParseResult.
package boardview

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/brd"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bvraw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/xzz"
)

// HeadSize is how many leading bytes detection looks at.
const HeadSize = 256

// Binary table dialects recognized by their magic.
const (
	DialectBVR  = "BVR"
	DialectBVR2 = "BVR2"
)

var (
	magicBVR2 = [][]byte{[]byte("BVR2"), []byte("BVRE")}
	magicBVR  = []byte("BVR")
)

// Detection is the outcome of sniffing a file. Dialect is set for the
// magic-detected binary table variants, which decode through the string
// heuristic family.
type Detection struct {
	Format  model.Format `json:"format"`
	Dialect string       `json:"dialect,omitempty"`
}

func (d Detection) String() string {
	if d.Dialect != "" {
		return fmt.Sprintf("%s (%s)", d.Format, d.Dialect)
	}
	return d.Format.String()
}

// Detect classifies a file from its path and leading bytes. Only the first
// HeadSize bytes of head and the extension are consulted. Content checks run
// before extension fallbacks so a renamed file is still recognized.
func Detect(path string, head []byte) Detection {
	head = head[:min(len(head), HeadSize)]
	ext := strings.ToLower(filepath.Ext(path))

	if bvraw.HasHeader(head) {
		return Detection{Format: model.StructuredText}
	}
	if len(head) >= 4 {
		for _, m := range magicBVR2 {
			if bytes.HasPrefix(head, m) {
				return Detection{Format: model.StringHeuristic, Dialect: DialectBVR2}
			}
		}
	}
	if bytes.HasPrefix(head, magicBVR) {
		return Detection{Format: model.StringHeuristic, Dialect: DialectBVR}
	}

	switch ext {
	case ".pcb":
		if xzz.Verify(head) {
			return Detection{Format: model.EncryptedContainer}
		}
		return Detection{Format: model.CompressedContainer}
	case ".brd":
		if brd.Sniff(head) {
			if bytes.Contains(head, []byte("BRDOUT:")) {
				return Detection{Format: model.BrdV2}
			}
			return Detection{Format: model.BrdV1}
		}
	case ".tvw":
		return Detection{Format: model.StringHeuristic}
	}
	return Detection{Format: model.Unsupported}
}

// DetectFile reads the head of path and detects its format.
func DetectFile(path string) (Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return Detection{}, fmt.Errorf("boardview: %w", err)
	}
	defer f.Close()

	head := make([]byte, HeadSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Detection{}, fmt.Errorf("boardview: read %s: %w", path, err)
	}
	return Detect(path, head[:n]), nil
}
