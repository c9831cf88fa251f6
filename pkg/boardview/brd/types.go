// Package brd decodes the two BRD boardview dialects: the tagged block
// format (optionally byte-scrambled) and the BRDOUT/NETS section format
// with an explicit net-index table.
package brd

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

// Format tags stored under meta.format.
const (
	FormatTagV1 = "BRD_BRD"
	FormatTagV2 = "BRD_BRD2"
)

// Part type values.
const (
	TypeSMD = "SMD"
	TypeTH  = "TH"
)

// Point is an integer board coordinate in mils.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type part struct {
	name      string
	side      string
	kind      string
	endOfPins int
	p1, p2    Point
}

type pin struct {
	pos   Point
	probe int
	part  int // 1-based; 0 means unassigned
	net   string
	side  string
}

type nail struct {
	probe int
	pos   Point
	side  string
	net   string
}

// board is the decoded content of either dialect before it is turned into a
// ParseResult.
type board struct {
	outline []Point
	parts   []part
	pins    []pin
	nails   []nail
}

// decodeText maps raw bytes to text as Latin-1 and splits it into lines,
// accepting CRLF, CR and LF endings.
func decodeText(data []byte) []string {
	utf, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		utf = bytes.ToValidUTF8(data, nil)
	}
	text := strings.ReplaceAll(string(utf), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func trimLeft(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }

// ints parses the first n fields of tokens as integers.
func ints(tokens []string, n int) ([]int, bool) {
	if len(tokens) < n {
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(tokens[i])
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func sideFromCode(v int) string {
	switch v {
	case 1:
		return model.SideTop
	case 2:
		return model.SideBottom
	default:
		return model.SideBoth
	}
}
