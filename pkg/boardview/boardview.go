package boardview

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bintable"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/brd"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bvraw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/pcbzip"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/tvw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/xzz"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Binary table search parameters for the BVR dialects.
const (
	tableMinRun     = 20
	tableMinEntries = 20
	tableSearchFrac = 0.75
)

// MetaTableError records why the binary table pass gave way to the string
// heuristic.
const MetaTableError = "binary_table_error"

// ContainerDecoder decodes one encrypted container.
type ContainerDecoder interface {
	Decode(data []byte) (*model.ParseResult, error)
}

// Decoder dispatches a file to the decoder for its detected format.
type Decoder struct {
	// XZZ decodes encrypted containers. Nil selects xzz.NewDecoder.
	XZZ ContainerDecoder
	// PCB bounds the compressed-container scan.
	PCB    pcbzip.Options
	Logger *slog.Logger
}

// NewDecoder returns a decoder with default options.
func NewDecoder() *Decoder {
	return &Decoder{PCB: pcbzip.DefaultOptions()}
}

// Parse decodes a whole file with the default decoder.
func Parse(path string, data []byte) (*model.ParseResult, error) {
	return NewDecoder().Parse(path, data)
}

// ParseFile reads and decodes path with the default decoder.
func ParseFile(path string) (*model.ParseResult, error) {
	return NewDecoder().ParseFile(path)
}

// ParseFile reads path fully and decodes it.
func (d *Decoder) ParseFile(path string) (*model.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("boardview: %w", err)
	}
	return d.Parse(path, data)
}

// Parse detects the format of data and runs the matching decoder. Decoder
// errors are wrapped and keep their model sentinel for errors.Is.
func (d *Decoder) Parse(path string, data []byte) (*model.ParseResult, error) {
	det := Detect(path, data)
	res, err := d.decode(det, path, data)
	if err != nil {
		return nil, fmt.Errorf("boardview: %s: %w", det.Format, err)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Decoder) decode(det Detection, path string, data []byte) (*model.ParseResult, error) {
	switch det.Format {
	case model.StructuredText:
		return bvraw.Parse(data)
	case model.BrdV1, model.BrdV2:
		return brd.Parse(data)
	case model.EncryptedContainer:
		return d.xzz().Decode(data)
	case model.CompressedContainer:
		opts := d.PCB
		if opts.Logger == nil {
			opts.Logger = d.logger()
		}
		if opts.DebugName == "" {
			opts.DebugName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return pcbzip.Parse(data, opts)
	case model.StringHeuristic:
		if det.Dialect != "" {
			return d.decodeTable(data, det.Dialect), nil
		}
		return tvw.Parse(data)
	}
	return nil, model.ErrUnsupportedFormat
}

// decodeTable reconstructs the string and pin tables of a BVR file. When no
// pin table is found the string heuristic takes over under the same tag.
func (d *Decoder) decodeTable(data []byte, dialect string) *model.ParseResult {
	tab, err := bintable.Reconstruct(data, bintable.Options{
		NetPattern:    netname.NetWord,
		RefPattern:    netname.TableRefWord,
		Allowed:       netname.TableString,
		MinRun:        tableMinRun,
		MinEntries:    tableMinEntries,
		SearchFrac:    tableSearchFrac,
		MinPinRecords: d.PCB.MinPinRecords,
	})
	if err == nil && len(tab.Pairs) == 0 {
		err = bintable.ErrMissingTables
	}
	if err != nil {
		d.logger().Debug("boardview: binary table fallback", "dialect", dialect, "err", err)
		res := tvw.ParseTagged(data, dialect)
		res.Meta[MetaTableError] = err.Error()
		return res
	}

	b := model.NewBuilder()
	for _, n := range tab.Nets {
		b.AddNet(n)
	}
	for _, c := range tab.Comps {
		b.AddComponent(c)
	}
	for _, p := range tab.Pairs {
		b.Link(p.Net, model.NewLink(p.Comp))
	}
	for k, v := range tab.Meta() {
		b.Meta[k] = v
	}
	return b.Result(dialect)
}

func (d *Decoder) xzz() ContainerDecoder {
	if d.XZZ != nil {
		return d.XZZ
	}
	x := xzz.NewDecoder()
	x.Logger = d.logger()
	return x
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
