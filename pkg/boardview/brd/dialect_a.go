package brd

import (
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

type blockA int

const (
	blockNone blockA = iota
	blockStrLength
	blockVarData
	blockFormat
	blockParts
	blockPins
	blockNails
)

var tagsA = map[string]blockA{
	"str_length:": blockStrLength,
	"var_data:":   blockVarData,
	"Format:":     blockFormat,
	"format:":     blockFormat,
	"Parts:":      blockParts,
	"Pins1:":      blockParts,
	"Pins:":       blockPins,
	"Pins2:":      blockPins,
	"Nails:":      blockNails,
}

// partSideA maps the dialect-A part flags onto a mounting side.
func partSideA(flags int) string {
	switch {
	case flags == 1 || (flags >= 4 && flags < 8):
		return model.SideTop
	case flags == 2 || flags >= 8:
		return model.SideBottom
	default:
		return model.SideBoth
	}
}

// decodeA parses the tagged block dialect. Records with missing or
// non-numeric fields are skipped.
func decodeA(data []byte) board {
	plain, _ := Descramble(data)
	var (
		bd        board
		cur       = blockNone
		numFormat int
	)
	for _, raw := range decodeText(plain) {
		line := trimLeft(raw)
		if line == "" {
			continue
		}
		if blk, ok := tagsA[line]; ok {
			cur = blk
			continue
		}
		tokens := strings.Fields(line)
		switch cur {
		case blockVarData:
			if v, ok := ints(tokens, 4); ok {
				numFormat = v[0]
			}
		case blockFormat:
			if v, ok := ints(tokens, 2); ok {
				bd.outline = append(bd.outline, Point{v[0], v[1]})
			}
		case blockParts:
			if len(tokens) < 3 {
				continue
			}
			v, ok := ints(tokens[1:], 2)
			if !ok {
				continue
			}
			kind := TypeTH
			if v[0]&0xC != 0 {
				kind = TypeSMD
			}
			bd.parts = append(bd.parts, part{
				name:      tokens[0],
				side:      partSideA(v[0]),
				kind:      kind,
				endOfPins: v[1],
			})
		case blockPins:
			if len(tokens) < 5 {
				continue
			}
			v, ok := ints(tokens, 4)
			if !ok {
				continue
			}
			bd.pins = append(bd.pins, pin{
				pos:   Point{v[0], v[1]},
				probe: v[2],
				part:  v[3],
				net:   tokens[4],
				side:  model.SideBoth,
			})
		case blockNails:
			if len(tokens) < 5 {
				continue
			}
			v, ok := ints(tokens, 4)
			if !ok {
				continue
			}
			side := model.SideBottom
			if v[3] == 1 {
				side = model.SideTop
			}
			bd.nails = append(bd.nails, nail{
				probe: v[0],
				pos:   Point{v[1], v[2]},
				side:  side,
				net:   tokens[4],
			})
		}
	}

	if numFormat > 0 && len(bd.outline) > numFormat {
		bd.outline = bd.outline[:numFormat]
	}

	byProbe := make(map[int]string, len(bd.nails))
	for _, n := range bd.nails {
		byProbe[n.probe] = n.net
	}
	for i := range bd.pins {
		p := &bd.pins[i]
		if p.net == "" {
			p.net = byProbe[p.probe]
		}
		if idx := p.part - 1; idx >= 0 && idx < len(bd.parts) {
			p.side = bd.parts[idx].side
		}
	}
	return bd
}
