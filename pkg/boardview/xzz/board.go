package xzz

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Main-block tags.
const (
	tagArc     = 0x01
	tagSegment = 0x05
	tagPart    = 0x07
	tagTestpad = 0x09
)

// Part sub-block tags.
const (
	subArc     = 0x01
	subSegment = 0x05
	subText    = 0x06
	subPin     = 0x09
)

const (
	outlineLayer = 28
	partMarker   = 0x06
	// testpadPrefix marks parts synthesized from test pads.
	testpadPrefix = "..."
)

// Meta keys specific to container results.
const (
	MetaOutline          = "outline_segments"
	MetaTestpoints       = "testpoints"
	MetaUnits            = "units"
	MetaComponentDetails = "component_details"
	MetaKeySource        = "key_source"
	MetaNetTableSize     = "net_table_size"
)

// ReasonMissingPartsOrPins tags a container with no usable parts or pins.
const ReasonMissingPartsOrPins = "xzzpcb_missing_parts_or_pins"

var refdesRe = regexp.MustCompile(`(?i)^(?:TP[0-9A-Z]+|FB\d{1,5}|[A-Z]{1,3}\d{1,5})(?:_[0-9]+)?$`)

// Segment is one outline edge in mils.
type Segment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Testpoint is a test pad as reported under meta.testpoints.
type Testpoint struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Net  string `json:"net"`
	Side string `json:"side"`
}

// Component is a recognized part as reported under meta.component_details.
type Component struct {
	RefDes string  `json:"refdes"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Side   string  `json:"side"`
	Type   string  `json:"type"`
}

type part struct {
	name string
	kind string
}

type pin struct {
	x, y int
	name string
	part int // 1-based
	net  string
}

type board struct {
	outline  []Segment
	parts    []part
	pins     []pin
	testpads []Testpoint
}

func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(s)
}

func scaled(v uint32) int { return int(v / Scale) }

// parseNetBlock reads (size, index, name) records until one is shorter than
// its own header or runs past the block.
func parseNetBlock(buf []byte) map[uint32]string {
	nets := make(map[uint32]string)
	for ptr := 0; ptr+8 <= len(buf); {
		size := int(u32(buf, ptr))
		idx := u32(buf, ptr+4)
		ptr += 8
		if size < 8 || ptr+size-8 > len(buf) {
			break
		}
		nets[idx] = latin1(buf[ptr : ptr+size-8])
		ptr += size - 8
	}
	return nets
}

// walkMain decodes the tagged records between ptr and end. decrypt turns an
// encrypted part record into plaintext.
func walkMain(buf []byte, ptr, end int, nets map[uint32]string, decrypt func([]byte) []byte) board {
	var bd board
	for ptr < end && ptr < len(buf) {
		tag := buf[ptr]
		size := int(u32(buf, ptr+1))
		ptr += 5
		if ptr+size > len(buf) {
			break
		}
		rec := buf[ptr : ptr+size]
		ptr += size

		switch tag {
		case tagArc:
			if u32(rec, 0) != outlineLayer {
				continue
			}
			x, y, r := scaled(u32(rec, 4)), scaled(u32(rec, 8)), scaled(u32(rec, 12))
			bd.outline = append(bd.outline, Segment{x - r, y, x + r, y})
		case tagSegment:
			if u32(rec, 0) != outlineLayer {
				continue
			}
			bd.outline = append(bd.outline, Segment{
				scaled(u32(rec, 4)), scaled(u32(rec, 8)),
				scaled(u32(rec, 12)), scaled(u32(rec, 16)),
			})
		case tagPart:
			bd.readPart(decrypt(rec), nets)
		case tagTestpad:
			bd.readTestpad(rec, nets)
		}
	}
	return bd
}

func (bd *board) readPart(dec []byte, nets map[uint32]string) {
	partSize := int(u32(dec, 0))
	cur := 4 + 18
	cur += 4 + int(u32(dec, cur))
	if cur >= len(dec) || dec[cur] != partMarker {
		return
	}
	cur += 31
	nameSize := int(u32(dec, cur))
	cur += 4
	name := latin1(span(dec, cur, cur+nameSize))
	cur += nameSize

	bd.parts = append(bd.parts, part{name: name, kind: "SMD"})
	index := len(bd.parts)
	for cur < partSize+4 && cur < len(dec) {
		sub := dec[cur]
		cur++
		switch sub {
		case subArc, subSegment, subText:
			cur += 4 + int(u32(dec, cur))
		case subPin:
			recEnd := cur + int(u32(dec, cur)) + 4
			cur += 8
			x := u32(dec, cur)
			y := u32(dec, cur+4)
			cur += 16
			pinNameSize := int(u32(dec, cur))
			cur += 4
			pinName := latin1(span(dec, cur, cur+pinNameSize))
			cur += pinNameSize + 32
			net := nets[u32(dec, cur)]
			if net == "NC" {
				net = netname.Unconnected
			}
			bd.pins = append(bd.pins, pin{x: scaled(x), y: scaled(y), name: pinName, part: index, net: net})
			cur = recEnd
		}
	}
}

func (bd *board) readTestpad(rec []byte, nets map[uint32]string) {
	x, y := scaled(u32(rec, 4)), scaled(u32(rec, 8))
	nameLen := int(u32(rec, 20))
	name := latin1(span(rec, 24, 24+nameLen))
	net := nets[u32(rec, len(rec)-4)]
	if net == netname.Unconnected || net == "NC" {
		net = ""
	}
	if name != "" && !unicode.IsLetter([]rune(name)[0]) {
		name = "TP" + name
	}
	bd.testpads = append(bd.testpads, Testpoint{Name: name, X: x, Y: y, Net: net, Side: model.SideTop})
	bd.parts = append(bd.parts, part{name: testpadPrefix + name, kind: "TP"})
	bd.pins = append(bd.pins, pin{x: x, y: y, name: name, part: len(bd.parts), net: net})
}

// translate moves the board so the outline's minimum corner is the origin.
func (bd *board) translate() {
	if len(bd.outline) == 0 {
		return
	}
	dx, dy := bd.outline[0].X1, bd.outline[0].Y1
	for _, s := range bd.outline {
		dx = min(dx, s.X1, s.X2)
		dy = min(dy, s.Y1, s.Y2)
	}
	if dx == 0 && dy == 0 {
		return
	}
	for i := range bd.outline {
		s := &bd.outline[i]
		s.X1, s.Y1, s.X2, s.Y2 = s.X1-dx, s.Y1-dy, s.X2-dx, s.Y2-dy
	}
	for i := range bd.pins {
		bd.pins[i].x -= dx
		bd.pins[i].y -= dy
	}
	for i := range bd.testpads {
		bd.testpads[i].X -= dx
		bd.testpads[i].Y -= dy
	}
}

// refName strips the test-pad prefix from a part name.
func refName(name string) string {
	if strings.HasPrefix(name, testpadPrefix) {
		return strings.TrimLeft(name, ".")
	}
	return name
}

func (bd *board) result(nets map[uint32]string, keySource string) *model.ParseResult {
	b := model.NewBuilder()
	for _, raw := range nets {
		if n := netname.Canonicalize(raw); n != "" {
			b.AddNet(n)
		}
	}

	type acc struct {
		x, y float64
		n    int
	}
	sums := make([]acc, len(bd.parts))
	for _, p := range bd.pins {
		net := netname.Canonicalize(p.net)
		if net == "" || netname.IsUnconnected(net) {
			continue
		}
		b.AddNet(net)
		idx := p.part - 1
		ref := ""
		if idx >= 0 && idx < len(bd.parts) {
			ref = bd.parts[idx].name
			sums[idx].x += float64(p.x)
			sums[idx].y += float64(p.y)
			sums[idx].n++
		}
		if strings.HasPrefix(ref, testpadPrefix) {
			ref = p.name
			if ref == "" {
				ref = strings.TrimLeft(bd.parts[idx].name, ".")
			}
		}
		if ref == "" {
			continue
		}
		l := model.NewLink(ref)
		l.Side = model.SideTop
		b.Link(net, l)
	}

	details := []Component{}
	for i, pt := range bd.parts {
		name := refName(pt.name)
		if name == "" || !refdesRe.MatchString(name) {
			continue
		}
		b.AddComponent(name)
		c := Component{RefDes: netname.RefDes(name), Side: model.SideTop, Type: pt.kind}
		if s := sums[i]; s.n > 0 {
			c.X, c.Y = s.x/float64(s.n), s.y/float64(s.n)
		}
		details = append(details, c)
	}

	outline := bd.outline
	if outline == nil {
		outline = []Segment{}
	}
	tps := bd.testpads
	if tps == nil {
		tps = []Testpoint{}
	}
	b.Meta[MetaOutline] = outline
	b.Meta[MetaTestpoints] = tps
	b.Meta[MetaUnits] = "mil"
	b.Meta[MetaComponentDetails] = details
	b.Meta[MetaKeySource] = keySource
	b.Meta[MetaNetTableSize] = len(nets)
	if len(bd.pins) == 0 || len(details) == 0 {
		b.Partial(ReasonMissingPartsOrPins)
	}
	return b.Result(FormatTag)
}
