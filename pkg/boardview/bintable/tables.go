package bintable

import (
	"encoding/binary"
	"fmt"
)

// Run is a maximal sequence of aligned u32 values that all address strings
// of one class.
type Run struct {
	Start  int
	Values []uint32
}

// FindOffsetRuns scans data at 4-byte alignment for runs of at least minLen
// consecutive values contained in offsets.
func FindOffsetRuns(data []byte, offsets map[uint32]struct{}, minLen int) []Run {
	var runs []Run
	n := len(data)
	i := 0
	for i+4 <= n {
		if _, ok := offsets[binary.LittleEndian.Uint32(data[i:])]; !ok {
			i += 4
			continue
		}
		start := i
		var values []uint32
		for i+4 <= n {
			v := binary.LittleEndian.Uint32(data[i:])
			if _, ok := offsets[v]; !ok {
				break
			}
			values = append(values, v)
			i += 4
		}
		if len(values) >= minLen {
			runs = append(runs, Run{Start: start, Values: values})
		}
	}
	return runs
}

// ChooseBestRun picks the run scoring highest on resolved items plus unique
// items. The first run reaching the best score wins. It returns -1 when no
// run resolves any string.
func ChooseBestRun(runs []Run, idx Index) (int, []string) {
	bestStart, bestScore := -1, 0
	var bestItems []string
	for _, run := range runs {
		items := make([]string, 0, len(run.Values))
		uniq := make(map[string]struct{})
		for _, off := range run.Values {
			if s := idx[off]; s != "" {
				items = append(items, s)
				uniq[s] = struct{}{}
			}
		}
		if score := len(items) + len(uniq); score > bestScore {
			bestStart, bestScore, bestItems = run.Start, score, items
		}
	}
	return bestStart, bestItems
}

// Order is the field order of a pin record.
type Order string

const (
	CompNet Order = "comp_net"
	NetComp Order = "net_comp"
)

// Strides are the record sizes tried, in order.
var Strides = []int{8, 12, 16, 20, 24}

// Orders are the field orders tried for each stride, in order.
var Orders = []Order{CompNet, NetComp}

// PinTable locates a pin table. Offset is -1 when none was found.
type PinTable struct {
	Offset  int
	Records int
	Order   Order
	Stride  int
}

// Found reports whether the search succeeded.
func (p PinTable) Found() bool { return p.Offset >= 0 }

// Layout renders the table shape as "order:stride".
func (p PinTable) Layout() string {
	if !p.Found() {
		return ""
	}
	return fmt.Sprintf("%s:%d", p.Order, p.Stride)
}

// record decodes the two index fields of record n.
func (p PinTable) record(data []byte, n int) (comp, net uint32) {
	base := p.Offset + p.Stride*n
	first := binary.LittleEndian.Uint32(data[base:])
	second := binary.LittleEndian.Uint32(data[base+4:])
	if p.Order == CompNet {
		return first, second
	}
	return second, first
}

// FindPinTable tries every (stride, order) pair over data[:searchEnd] and
// returns the longest run of at least minRecords records whose fields index
// validly into tables of compCount and netCount entries. Iteration order is
// fixed and a later run must be strictly longer to replace the current best,
// so the first maximal run wins.
func FindPinTable(data []byte, compCount, netCount, searchEnd, minRecords int) PinTable {
	best := PinTable{Offset: -1}
	if searchEnd > len(data) {
		searchEnd = len(data)
	}
	for _, stride := range Strides {
		for _, order := range Orders {
			probe := PinTable{Stride: stride, Order: order}
			i := 0
			for i+stride*minRecords <= searchEnd {
				probe.Offset = i
				count := 0
				for i+stride*(count+1) <= searchEnd {
					comp, net := probe.record(data, count)
					if comp >= uint32(compCount) || net >= uint32(netCount) {
						break
					}
					count++
				}
				switch {
				case count >= minRecords && count > best.Records:
					best = PinTable{Offset: i, Records: count, Order: order, Stride: stride}
					i += stride * count
				case count >= minRecords:
					// Any later start inside this run finds a shorter tail of it.
					i += stride * count
				default:
					i += 4
				}
			}
		}
	}
	return best
}

// Pair is one decoded pin record.
type Pair struct {
	Comp string
	Net  string
}

// Pairs decodes every record of table against the two string tables.
// Records indexing outside the tables are skipped.
func (p PinTable) Pairs(data []byte, comps, nets []string) []Pair {
	if !p.Found() {
		return nil
	}
	out := make([]Pair, 0, p.Records)
	for n := 0; n < p.Records; n++ {
		comp, net := p.record(data, n)
		if int(comp) >= len(comps) || int(net) >= len(nets) {
			continue
		}
		out = append(out, Pair{Comp: comps[comp], Net: nets[net]})
	}
	return out
}
