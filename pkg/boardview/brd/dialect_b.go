package brd

import (
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

type blockB int

const (
	sectionNone blockB = iota
	sectionOutline
	sectionNets
	sectionParts
	sectionPins
	sectionNails
)

var sectionsB = []struct {
	tag string
	sec blockB
}{
	{"BRDOUT:", sectionOutline},
	{"NETS:", sectionNets},
	{"PARTS:", sectionParts},
	{"PINS:", sectionPins},
	{"NAILS:", sectionNails},
}

// IsDialectB reports whether data uses the BRDOUT/NETS section layout.
func IsDialectB(data []byte) bool {
	s := string(data)
	return strings.Contains(s, "BRDOUT:") && strings.Contains(s, "NETS:")
}

// decodeB parses the section dialect. Pins reference nets by index into the
// NETS table; bottom-side coordinates are mirrored against the board height.
func decodeB(data []byte) board {
	var (
		bd   board
		cur  = sectionNone
		maxY int
		nets = make(map[int]string)
	)
	for _, raw := range decodeText(data) {
		line := trimLeft(raw)
		if line == "" {
			continue
		}
		header := false
		for _, s := range sectionsB {
			if !strings.HasPrefix(line, s.tag) {
				continue
			}
			cur, header = s.sec, true
			if s.sec == sectionOutline {
				if v, ok := ints(strings.Fields(line[len(s.tag):]), 3); ok {
					maxY = v[2]
				}
			}
			break
		}
		if header {
			continue
		}

		tokens := strings.Fields(line)
		switch cur {
		case sectionOutline:
			if v, ok := ints(tokens, 2); ok {
				bd.outline = append(bd.outline, Point{v[0], v[1]})
			}
		case sectionNets:
			if len(tokens) < 2 {
				continue
			}
			if id, err := strconv.Atoi(tokens[0]); err == nil {
				nets[id] = tokens[1]
			}
		case sectionParts:
			if len(tokens) < 7 {
				continue
			}
			v, ok := ints(tokens[1:], 6)
			if !ok {
				continue
			}
			bd.parts = append(bd.parts, part{
				name:      tokens[0],
				p1:        Point{v[0], v[1]},
				p2:        Point{v[2], v[3]},
				endOfPins: v[4],
				side:      sideFromCode(v[5]),
				kind:      TypeSMD,
			})
		case sectionPins:
			v, ok := ints(tokens, 4)
			if !ok {
				continue
			}
			bd.pins = append(bd.pins, pin{
				pos:   Point{v[0], v[1]},
				probe: -1,
				net:   nets[v[2]],
				side:  sideFromCode(v[3]),
			})
		case sectionNails:
			v, ok := ints(tokens, 5)
			if !ok {
				continue
			}
			net, found := nets[v[3]]
			if !found {
				net = "UNCONNECTED"
			}
			n := nail{probe: v[0], pos: Point{v[1], v[2]}, net: net, side: model.SideTop}
			if v[4] != 1 {
				n.side = model.SideBottom
				n.pos.Y = maxY - n.pos.Y
			}
			bd.nails = append(bd.nails, n)
		}
	}

	assignPins(&bd, maxY)
	// Placeholder parts that own probe points on each face.
	bd.parts = append(bd.parts,
		part{name: "...", side: model.SideBottom, kind: TypeSMD},
		part{name: "...", side: model.SideTop, kind: TypeSMD},
	)
	return bd
}

// assignPins walks the pin list in order and hands each part the range that
// ends at the next part's end_of_pins (the last part takes the rest). A part
// with no pin on its own face is through-hole.
func assignPins(bd *board, maxY int) {
	cpi := 0
	for i := range bd.parts {
		pt := &bd.parts[i]
		end := len(bd.pins)
		if i < len(bd.parts)-1 {
			end = bd.parts[i+1].endOfPins
		}
		if pt.side == model.SideBottom {
			pt.p1.Y = maxY - pt.p1.Y
			pt.p2.Y = maxY - pt.p2.Y
		}
		dip := true
		for ; cpi < end && cpi < len(bd.pins); cpi++ {
			p := &bd.pins[cpi]
			p.part = i + 1
			if p.side != model.SideTop {
				p.pos.Y = maxY - p.pos.Y
			}
			if (p.side == model.SideTop || p.side == model.SideBottom) && p.side == pt.side {
				dip = false
			}
		}
		if dip {
			pt.kind = TypeTH
			pt.side = model.SideBoth
		}
	}
}
