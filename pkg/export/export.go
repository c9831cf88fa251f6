// Package export writes parse results in formats other tools can load.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
)

// Format names an export format.
type Format string

const (
	FormatKiCad Format = "kicad"
	FormatJSON  Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatKiCad, FormatJSON}

var bareAtom = regexp.MustCompile(`^[A-Za-z0-9_.+/-]+$`)

func atom(s string) string {
	if bareAtom.MatchString(s) {
		return s
	}
	return strconv.Quote(s)
}

// Write renders res in format f.
func Write(f Format, boardID string, res *model.ParseResult) ([]byte, error) {
	switch f {
	case FormatKiCad:
		return []byte(KiCad(boardID, res)), nil
	case FormatJSON:
		return JSON(boardID, res)
	}
	return nil, fmt.Errorf("export: unknown format %q", f)
}

// KiCad renders res as a KiCad netlist (version D). Nets are numbered from 1
// in sorted order; each node names a refdes without a pin, since boardview
// links carry none.
func KiCad(boardID string, res *model.ParseResult) string {
	var b strings.Builder
	b.WriteString("(export (version D)\n")
	b.WriteString("  (design\n")
	fmt.Fprintf(&b, "    (source %s)\n", atom(boardID))
	b.WriteString("    (tool otbv)\n")
	b.WriteString("  )\n")

	b.WriteString("  (components\n")
	comps := append([]string(nil), res.Components()...)
	sort.Strings(comps)
	for _, ref := range comps {
		fmt.Fprintf(&b, "    (comp (ref %s))\n", atom(ref))
	}
	b.WriteString("  )\n")

	b.WriteString("  (nets\n")
	for i, net := range res.Nets.Sorted() {
		fmt.Fprintf(&b, "    (net (code %d) (name %s)", i+1, atom(net))
		seen := make(map[string]struct{})
		for _, l := range res.NetToRefs[net] {
			if _, ok := seen[l.RefDes]; ok {
				continue
			}
			seen[l.RefDes] = struct{}{}
			fmt.Fprintf(&b, "\n      (node (ref %s))", atom(l.RefDes))
		}
		b.WriteString(")\n")
	}
	b.WriteString("  )\n")
	b.WriteString(")\n")
	return b.String()
}

// JSON renders res in the boardview cache layout.
func JSON(boardID string, res *model.ParseResult) ([]byte, error) {
	meta := make(model.Meta, len(res.Meta)+1)
	for k, v := range res.Meta {
		meta[k] = v
	}
	if _, ok := meta[netrefs.MetaBoardID]; !ok {
		meta[netrefs.MetaBoardID] = boardID
	}
	doc := netrefs.BoardviewCache{Nets: res.Nets.Sorted(), NetToRefs: res.NetToRefs, Meta: meta}
	return json.MarshalIndent(doc, "", "  ")
}
