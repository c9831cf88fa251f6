package bintable

import (
	"errors"
	"regexp"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// DefaultMinPinRecords is the shortest pin-table run accepted. Shorter runs
// are indistinguishable from chance collisions in arbitrary binary data. The
// value is empirical and open to revision against a larger corpus.
const DefaultMinPinRecords = 50

var (
	ErrMissingStrings    = errors.New("missing_net_or_refdes_strings")
	ErrMissingTables     = errors.New("missing_net_or_component_tables")
	ErrInsufficientTable = errors.New("insufficient_net_or_component_count")
)

// Options parameterize a reconstruction.
type Options struct {
	NetPattern    *regexp.Regexp // full-match grammar for net strings
	RefPattern    *regexp.Regexp // full-match grammar for refdes strings
	Allowed       *regexp.Regexp // optional filter applied during extraction
	MinStringLen  int
	MaxStringLen  int
	MinRun        int     // shortest offset run considered a table
	MinEntries    int     // minimum nets and components after cleanup
	SearchFrac    float64 // fraction of the file searched for the pin table
	MinPinRecords int
}

func (o *Options) defaults() {
	if o.MinStringLen <= 0 {
		o.MinStringLen = 2
	}
	if o.MaxStringLen <= 0 {
		o.MaxStringLen = 80
	}
	if o.MinRun <= 0 {
		o.MinRun = 20
	}
	if o.SearchFrac <= 0 || o.SearchFrac > 1 {
		o.SearchFrac = 0.8
	}
	if o.MinPinRecords <= 0 {
		o.MinPinRecords = DefaultMinPinRecords
	}
}

// Result is a reconstructed pair of string tables plus the pin table found
// between them, if any.
type Result struct {
	Nets            []string // canonical net names in table order
	Comps           []string // uppercase refdes in table order
	NetTableOffset  int
	CompTableOffset int
	Pins            PinTable
	Pairs           []Pair
}

// Reconstruct runs the full search. A returned error means the string tables
// themselves could not be located; a missing pin table is reported through
// Result.Pins.Found instead.
func Reconstruct(data []byte, opts Options) (*Result, error) {
	opts.defaults()
	strs := ExtractStrings(data, opts.MinStringLen, opts.MaxStringLen, opts.Allowed)
	if len(strs) == 0 {
		return nil, model.ErrNoStrings
	}
	idx := NewIndex(data, strs)
	netOffsets := idx.Filter(opts.NetPattern)
	refOffsets := idx.Filter(opts.RefPattern)
	if len(netOffsets) == 0 || len(refOffsets) == 0 {
		return nil, ErrMissingStrings
	}

	netStart, netsRaw := ChooseBestRun(FindOffsetRuns(data, netOffsets, opts.MinRun), idx)
	compStart, compsRaw := ChooseBestRun(FindOffsetRuns(data, refOffsets, opts.MinRun), idx)
	if len(netsRaw) == 0 || len(compsRaw) == 0 {
		return nil, ErrMissingTables
	}

	res := &Result{NetTableOffset: netStart, CompTableOffset: compStart}
	for _, n := range netsRaw {
		if canon := netname.Canonicalize(n); canon != "" {
			res.Nets = append(res.Nets, canon)
		}
	}
	for _, c := range compsRaw {
		if c != "" {
			res.Comps = append(res.Comps, strings.ToUpper(c))
		}
	}
	if len(res.Nets) < opts.MinEntries || len(res.Comps) < opts.MinEntries {
		return nil, ErrInsufficientTable
	}

	searchEnd := int(float64(len(data)) * opts.SearchFrac)
	res.Pins = FindPinTable(data, len(res.Comps), len(res.Nets), searchEnd, opts.MinPinRecords)
	res.Pairs = res.Pins.Pairs(data, res.Comps, res.Nets)
	return res, nil
}

// Meta returns the table locations in the shape stored in parse metadata.
func (r *Result) Meta() map[string]any {
	return map[string]any{
		"binary_table":           true,
		"net_table_offset":       r.NetTableOffset,
		"component_table_offset": r.CompTableOffset,
		"pin_table_offset":       r.Pins.Offset,
		"pin_table_records":      r.Pins.Records,
		"pin_table_layout":       r.Pins.Layout(),
	}
}
