// Package model holds the decoder-independent result types shared by every
// boardview decoder: the canonical net set, the net to refdes links and the
// free-form metadata record.
package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Format identifies which decoder handles a file.
type Format int

const (
	Unsupported Format = iota
	StructuredText
	BrdV1
	BrdV2
	EncryptedContainer
	CompressedContainer
	StringHeuristic
)

var formatNames = map[Format]string{
	Unsupported:         "unsupported",
	StructuredText:      "structured-text",
	BrdV1:               "brd",
	BrdV2:               "brd2",
	EncryptedContainer:  "encrypted-container",
	CompressedContainer: "compressed-container",
	StringHeuristic:     "string-heuristic",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return Unsupported, fmt.Errorf("model: unknown format %q", s)
}

// Side values used on links and components.
const (
	SideTop    = "top"
	SideBottom = "bottom"
	SideBoth   = "both"
)

// Parse status values stored under MetaParseStatus.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
)

// Well-known metadata keys.
const (
	MetaFormat          = "format"
	MetaNetsCount       = "nets_count"
	MetaComponentsCount = "components_count"
	MetaPairsCount      = "pairs_count"
	MetaComponents      = "components"
	MetaParseStatus     = "parse_status"
	MetaParseError      = "parse_error"
)

// Link ties one reference designator to the net that owns it.
type Link struct {
	RefDes   string   `json:"refdes"`
	Kind     string   `json:"kind"`
	Side     string   `json:"side,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	SubBoard string   `json:"sub_board,omitempty"`
	Layer    string   `json:"layer,omitempty"`
}

// NewLink returns a link for refdes with its kind derived from the prefix.
func NewLink(refdes string) Link {
	refdes = netname.RefDes(refdes)
	return Link{RefDes: refdes, Kind: netname.Kind(refdes)}
}

// At returns a copy of the link positioned at (x, y).
func (l Link) At(x, y float64) Link {
	l.X, l.Y = &x, &y
	return l
}

// key identifies a link inside one net's list. The same refdes on two merged
// sub-boards is two distinct physical parts.
func (l Link) key() string {
	return l.RefDes + "\x00" + l.SubBoard
}

// NetSet is a set of canonical net names. It serializes as a sorted array.
type NetSet map[string]struct{}

// Add inserts a canonical net.
func (s NetSet) Add(net string) { s[net] = struct{}{} }

// Has reports membership.
func (s NetSet) Has(net string) bool {
	_, ok := s[net]
	return ok
}

// Sorted returns the members in lexical order.
func (s NetSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s NetSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *NetSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = make(NetSet, len(list))
	for _, n := range list {
		s.Add(n)
	}
	return nil
}

// Meta is the free-form metadata record attached to a parse result.
type Meta map[string]any

// String returns the string stored under key, or "".
func (m Meta) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Int returns the integer stored under key. Values decoded from JSON arrive
// as float64 and are converted.
func (m Meta) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// ParseResult is what every decoder returns.
type ParseResult struct {
	Nets      NetSet            `json:"nets"`
	NetToRefs map[string][]Link `json:"net_to_refs"`
	Meta      Meta              `json:"meta"`
}

// Format returns the format tag recorded by the decoder.
func (r *ParseResult) Format() string { return r.Meta.String(MetaFormat) }

// Status returns the parse status, defaulting to success.
func (r *ParseResult) Status() string {
	if s := r.Meta.String(MetaParseStatus); s != "" {
		return s
	}
	return StatusSuccess
}

// PairsCount is the total number of links across all nets.
func (r *ParseResult) PairsCount() int {
	n := 0
	for _, links := range r.NetToRefs {
		n += len(links)
	}
	return n
}

// LinkedRefDes returns every distinct refdes that appears in a link.
func (r *ParseResult) LinkedRefDes() []string {
	seen := make(map[string]struct{})
	for _, links := range r.NetToRefs {
		for _, l := range links {
			seen[l.RefDes] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Components returns the component list recorded in meta, falling back to the
// linked refdes.
func (r *ParseResult) Components() []string {
	switch v := r.Meta[MetaComponents].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return r.LinkedRefDes()
}

// Validate checks that every net keyed in NetToRefs is a member of Nets.
func (r *ParseResult) Validate() error {
	for net := range r.NetToRefs {
		if !r.Nets.Has(net) {
			return fmt.Errorf("model: net %q linked but missing from net set", net)
		}
	}
	return nil
}
