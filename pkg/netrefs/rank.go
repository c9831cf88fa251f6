// Package netrefs ranks the refdes on each net by how convenient they are to
// probe, builds net/refdes associations from free text, and persists the
// per-board caches other tools read.
package netrefs

import (
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// DefaultPerNetCap bounds the links kept per net when a cache is written.
const DefaultPerNetCap = 30

// preference orders refdes kinds from most to least convenient to probe.
var preference = map[string]int{
	"TP": 0, "P": 1, "C": 2, "L": 3, "J": 4, "R": 5,
	"FB": 6, "D": 7, "Q": 8, "U": 9, "F": 10, "X": 11,
}

const (
	unrankedKind = 99
	// Bare connector designators such as J1 or P2 are usually large
	// multi-pin parts and a poor place to land a probe.
	shortConnectorPenalty = 50
)

type rankKey struct {
	pref, penalty, idx int
	ref                string
}

func (a rankKey) less(b rankKey) bool {
	if a.pref != b.pref {
		return a.pref < b.pref
	}
	if a.penalty != b.penalty {
		return a.penalty < b.penalty
	}
	if a.idx != b.idx {
		return a.idx < b.idx
	}
	return a.ref < b.ref
}

func keyOf(l model.Link, idx int) rankKey {
	ref := netname.RefDes(l.RefDes)
	kind := strings.ToUpper(l.Kind)
	if kind == "" {
		kind = netname.Kind(ref)
	}
	if strings.HasPrefix(ref, "TP") {
		kind = "TP"
	}
	pref, ok := preference[kind]
	if !ok {
		pref = unrankedKind
	}
	penalty := 0
	if (kind == "J" || kind == "P") && len(ref) <= 2 {
		penalty = shortConnectorPenalty
	}
	return rankKey{pref: pref, penalty: penalty, idx: idx, ref: ref}
}

// Rank returns links ordered by probe preference. The input order breaks
// ties, so a decoder's own ordering survives within one kind.
func Rank(links []model.Link) []model.Link {
	type entry struct {
		key  rankKey
		link model.Link
	}
	entries := make([]entry, 0, len(links))
	for i, l := range links {
		if l.RefDes == "" {
			continue
		}
		entries = append(entries, entry{keyOf(l, i), l})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key.less(entries[j].key) })
	out := make([]model.Link, len(entries))
	for i, e := range entries {
		out[i] = e.link
	}
	return out
}

// MeasurePoints returns up to k distinct refdes from links, best probe
// point first.
func MeasurePoints(links []model.Link, k int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, l := range Rank(links) {
		if len(out) >= k {
			break
		}
		ref := netname.RefDes(l.RefDes)
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// Index is a parse result whose per-net link lists are ranked and capped.
type Index struct {
	BoardID   string
	Nets      model.NetSet
	NetToRefs map[string][]model.Link
	Meta      model.Meta
}

// NewIndex ranks every net of res and keeps at most perNetCap links per net.
// A non-positive cap selects DefaultPerNetCap.
func NewIndex(boardID string, res *model.ParseResult, perNetCap int) *Index {
	if perNetCap <= 0 {
		perNetCap = DefaultPerNetCap
	}
	ix := &Index{
		BoardID:   boardID,
		Nets:      make(model.NetSet, len(res.Nets)),
		NetToRefs: make(map[string][]model.Link, len(res.NetToRefs)),
		Meta:      make(model.Meta, len(res.Meta)),
	}
	for n := range res.Nets {
		ix.Nets.Add(n)
	}
	for net, links := range res.NetToRefs {
		ranked := Rank(links)
		if len(ranked) > perNetCap {
			ranked = ranked[:perNetCap]
		}
		ix.NetToRefs[net] = ranked
	}
	for k, v := range res.Meta {
		ix.Meta[k] = v
	}
	return ix
}

// Result returns the index as a parse result.
func (ix *Index) Result() *model.ParseResult {
	return &model.ParseResult{Nets: ix.Nets, NetToRefs: ix.NetToRefs, Meta: ix.Meta}
}

// PairsCount is the number of links kept across all nets.
func (ix *Index) PairsCount() int {
	return ix.Result().PairsCount()
}

// Points returns up to k probe points for net. Unknown nets yield nothing.
func (ix *Index) Points(net string, k int) []string {
	canon := netname.Canonicalize(net)
	if canon == "" || !ix.Nets.Has(canon) {
		return nil
	}
	return MeasurePoints(ix.NetToRefs[canon], k)
}

// cacheGroup orders refdes for PointsFromCache: test points, then other T
// parts, capacitors, inductors, resistors, ferrite beads, everything else.
func cacheGroup(ref string) int {
	switch {
	case strings.HasPrefix(ref, "TP"):
		return 0
	case strings.HasPrefix(ref, "T"):
		return 1
	case strings.HasPrefix(ref, "C"):
		return 2
	case strings.HasPrefix(ref, "L"):
		return 3
	case strings.HasPrefix(ref, "R"):
		return 4
	case strings.HasPrefix(ref, "FB"):
		return 5
	}
	return 6
}

// PointsFromCache picks up to limit probe points for net from a text-built
// association map, keeping only refdes present on the board.
func PointsFromCache(net string, netToRefdes map[string][]string, known map[string]struct{}, limit int) []string {
	canon := netname.Canonicalize(net)
	refs, ok := netToRefdes[canon]
	if canon == "" || !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range refs {
		ref := netname.RefDes(r)
		if ref == "" {
			continue
		}
		if _, ok := known[ref]; !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		gi, gj := cacheGroup(out[i]), cacheGroup(out[j])
		if gi != gj {
			return gi < gj
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
