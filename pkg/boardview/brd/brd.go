package brd

import (
	"bytes"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Meta keys specific to BRD results.
const (
	MetaOutline          = "outline_points"
	MetaBounds           = "bounds"
	MetaTestpoints       = "testpoints"
	MetaTestpointsCount  = "testpoints_count"
	MetaUnits            = "units"
	MetaComponentDetails = "component_details"
)

// Partial-status reasons.
const (
	ReasonMissingPartsOrPins = "brd_missing_parts_or_pins"
	ReasonNoPinLinks         = "brd_no_pin_links"
)

var textMarkers = [][]byte{[]byte("str_length:"), []byte("var_data:"), []byte("BRDOUT:")}

// Sniff reports whether head looks like either BRD dialect: the scrambled
// signature or one of the plain-text block tags.
func Sniff(head []byte) bool {
	if bytes.HasPrefix(head, Signature) {
		return true
	}
	for _, m := range textMarkers {
		if bytes.Contains(head, m) {
			return true
		}
	}
	return false
}

// Testpoint is a probe nail as reported under meta.testpoints.
type Testpoint struct {
	Probe int    `json:"probe"`
	Net   string `json:"net"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Side  string `json:"side"`
}

// Component is a placed part as reported under meta.component_details.
type Component struct {
	RefDes string  `json:"refdes"`
	Side   string  `json:"side"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Bounds is the bounding box of the board outline.
type Bounds struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Parse decodes a BRD file, picking the dialect from its content. It does
// not fail on missing sections; coverage gaps are reported through
// meta.parse_status.
func Parse(data []byte) (*model.ParseResult, error) {
	if IsDialectB(data) {
		return decodeB(data).result(FormatTagV2), nil
	}
	return decodeA(data).result(FormatTagV1), nil
}

func (bd board) result(format string) *model.ParseResult {
	b := model.NewBuilder()

	centroids := bd.centroids()
	for _, p := range bd.pins {
		net := netname.Canonicalize(p.net)
		if net == "" || netname.IsUnconnected(net) {
			continue
		}
		b.AddNet(net)
		idx := p.part - 1
		if idx < 0 || idx >= len(bd.parts) {
			continue
		}
		pt := bd.parts[idx]
		ref := strings.TrimSpace(pt.name)
		if ref == "" || ref == "..." {
			continue
		}
		l := model.NewLink(ref)
		l.Side = pt.side
		c := centroids[idx]
		b.Link(net, l.At(c.X, c.Y))
	}

	tps := make([]Testpoint, 0, len(bd.nails))
	for _, n := range bd.nails {
		net := netname.Canonicalize(n.net)
		if net != "" && !netname.IsUnconnected(net) {
			b.AddNet(net)
		}
		tps = append(tps, Testpoint{Probe: n.probe, Net: net, X: n.pos.X, Y: n.pos.Y, Side: n.side})
	}

	details := make([]Component, 0, len(bd.parts))
	for i, pt := range bd.parts {
		ref := strings.TrimSpace(pt.name)
		if ref == "" || ref == "..." {
			continue
		}
		b.AddComponent(ref)
		c := centroids[i]
		details = append(details, Component{RefDes: netname.RefDes(ref), Side: pt.side, Type: pt.kind, X: c.X, Y: c.Y})
	}

	outline := bd.outline
	if outline == nil {
		outline = []Point{}
	}
	b.Meta[MetaOutline] = outline
	b.Meta[MetaBounds] = bounds(bd.outline)
	b.Meta[MetaTestpoints] = tps
	b.Meta[MetaTestpointsCount] = len(tps)
	b.Meta[MetaUnits] = "mil"
	b.Meta[MetaComponentDetails] = details

	switch {
	case len(bd.pins) == 0 || len(details) == 0:
		b.Partial(ReasonMissingPartsOrPins)
	case b.PairsCount() == 0:
		b.Partial(ReasonNoPinLinks)
	default:
		b.Meta[model.MetaParseStatus] = model.StatusSuccess
	}
	return b.Result(format)
}

type centroid struct{ X, Y float64 }

// centroids places every part at the midpoint of its p1/p2 box when one was
// given, otherwise at the average of its pins.
func (bd board) centroids() []centroid {
	sums := make([]struct {
		x, y float64
		n    int
	}, len(bd.parts))
	for _, p := range bd.pins {
		if idx := p.part - 1; idx >= 0 && idx < len(bd.parts) {
			sums[idx].x += float64(p.pos.X)
			sums[idx].y += float64(p.pos.Y)
			sums[idx].n++
		}
	}
	out := make([]centroid, len(bd.parts))
	for i, pt := range bd.parts {
		switch {
		case pt.p1 != (Point{}) || pt.p2 != (Point{}):
			out[i] = centroid{float64(pt.p1.X+pt.p2.X) / 2, float64(pt.p1.Y+pt.p2.Y) / 2}
		case sums[i].n > 0:
			out[i] = centroid{sums[i].x / float64(sums[i].n), sums[i].y / float64(sums[i].n)}
		}
	}
	return out
}

func bounds(pts []Point) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	bb := Bounds{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		bb.MinX = min(bb.MinX, p.X)
		bb.MinY = min(bb.MinY, p.Y)
		bb.MaxX = max(bb.MaxX, p.X)
		bb.MaxY = max(bb.MaxY, p.Y)
	}
	return bb
}
