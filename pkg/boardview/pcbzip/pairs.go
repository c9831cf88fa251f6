package pcbzip

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

const (
	tableRowLimit = 200
	fixedNetWidth = 40
	fixedRefWidth = 16
	maxLineTokens = 12
)

var (
	kvNetRe   = regexp.MustCompile(`(?i)\bNET\s*[:=]\s*([A-Za-z0-9_.-]+)`)
	kvRefRe   = regexp.MustCompile(`(?i)\bREF(?:DES)?\s*[:=]\s*([A-Za-z0-9_.-]+)`)
	lineTokRe = regexp.MustCompile(`[A-Za-z0-9_.-]+`)
)

// pairSet maps canonical nets to the refdes seen with them.
type pairSet map[string]map[string]struct{}

func (p pairSet) add(net, ref string) {
	set, ok := p[net]
	if !ok {
		set = make(map[string]struct{})
		p[net] = set
	}
	set[ref] = struct{}{}
}

func (p pairSet) merge(o pairSet) {
	for net, refs := range o {
		for ref := range refs {
			p.add(net, ref)
		}
	}
}

func (p pairSet) count() int {
	n := 0
	for _, refs := range p {
		n += len(refs)
	}
	return n
}

// pairer mines net/refdes pairs from text lines. Only nets and refdes already
// collected from the container are accepted.
type pairer struct {
	nets map[string]struct{}
	refs map[string]struct{}
}

// accept normalizes a raw net and refdes and reports whether both are known.
func (p pairer) accept(rawNet, rawRef string) (string, string, bool) {
	rawNet, rawRef = strings.TrimSpace(rawNet), strings.TrimSpace(rawRef)
	if rawNet == "" || rawRef == "" {
		return "", "", false
	}
	net := netname.Canonicalize(rawNet)
	ref := strings.ToUpper(rawRef)
	if _, ok := p.nets[net]; !ok {
		return "", "", false
	}
	if _, ok := p.refs[ref]; !ok {
		return "", "", false
	}
	return net, ref, true
}

// PairText runs the line heuristics over one text blob and returns the pairs
// from the first heuristic that finds any. nets and refs are the tokens known
// from the whole container.
func PairText(text string, nets, refs map[string]struct{}) map[string][]string {
	p := pairer{nets: nets, refs: refs}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, h := range []func([]string) pairSet{
		p.keyValue,
		p.table,
		p.fixedWidth,
		p.lineTokens,
	} {
		if found := h(lines); len(found) > 0 {
			return found.lists()
		}
	}
	return nil
}

func (p pairSet) lists() map[string][]string {
	out := make(map[string][]string, len(p))
	for net, refs := range p {
		for ref := range refs {
			out[net] = append(out[net], ref)
		}
		sort.Strings(out[net])
	}
	return out
}

// keyValue matches NET=... and REF=... on the same line.
func (p pairer) keyValue(lines []string) pairSet {
	out := make(pairSet)
	for _, ln := range lines {
		n := kvNetRe.FindStringSubmatch(ln)
		if n == nil {
			continue
		}
		r := kvRefRe.FindStringSubmatch(ln)
		if r == nil {
			continue
		}
		if net, ref, ok := p.accept(n[1], r[1]); ok {
			out.add(net, ref)
		}
	}
	return out
}

// table reads the rows following the first tab or comma separated header
// naming both a NET and a REF column.
func (p pairer) table(lines []string) pairSet {
	out := make(pairSet)
	for i, ln := range lines {
		var delim string
		switch {
		case strings.Contains(ln, "\t"):
			delim = "\t"
		case strings.Contains(ln, ","):
			delim = ","
		default:
			continue
		}
		netCol, refCol := -1, -1
		for j, h := range strings.Split(ln, delim) {
			switch strings.ToUpper(strings.TrimSpace(h)) {
			case "NET":
				if netCol < 0 {
					netCol = j
				}
			case "REF", "REFDES":
				if refCol < 0 {
					refCol = j
				}
			}
		}
		if netCol < 0 || refCol < 0 {
			continue
		}
		end := min(len(lines), i+1+tableRowLimit)
		for _, row := range lines[i+1 : end] {
			cols := strings.Split(row, delim)
			if netCol >= len(cols) || refCol >= len(cols) {
				continue
			}
			if net, ref, ok := p.accept(cols[netCol], cols[refCol]); ok {
				out.add(net, ref)
			}
		}
		break
	}
	return out
}

// runeSlice returns up to width runes of s starting at rune index from.
func runeSlice(s []rune, from, width int) string {
	if from >= len(s) {
		return ""
	}
	return string(s[from:min(len(s), from+width)])
}

// fixedWidth reads column-aligned rows under a header that contains both
// NET and REF, using the header's column positions.
func (p pairer) fixedWidth(lines []string) pairSet {
	out := make(pairSet)
	for i, ln := range lines {
		upper := strings.ToUpper(ln)
		if !strings.Contains(ln, "NET") || !strings.Contains(ln, "REF") {
			continue
		}
		netIdx := runeIndex(upper, "NET")
		refIdx := runeIndex(upper, "REF")
		need := max(netIdx, refIdx) + 3
		end := min(len(lines), i+1+tableRowLimit)
		for _, row := range lines[i+1 : end] {
			r := []rune(row)
			if len(r) < need {
				continue
			}
			net := runeSlice(r, netIdx, fixedNetWidth)
			ref := runeSlice(r, refIdx, fixedRefWidth)
			net = firstField(net)
			ref = firstField(ref)
			if n, rf, ok := p.accept(net, ref); ok {
				out.add(n, rf)
			}
		}
		if len(out) > 0 {
			break
		}
	}
	return out
}

// firstField strips a fixed-width cell down to its leading word so a wide
// net slice does not swallow the neighbouring column.
func firstField(cell string) string {
	f := strings.Fields(cell)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func runeIndex(s, sub string) int {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}

// lineTokens accepts short delimited lines holding exactly one known net
// and one known refdes.
func (p pairer) lineTokens(lines []string) pairSet {
	out := make(pairSet)
	for _, ln := range lines {
		if !strings.ContainsAny(ln, ",\t:") {
			continue
		}
		toks := lineTokRe.FindAllString(ln, maxLineTokens+1)
		if len(toks) == 0 || len(toks) > maxLineTokens {
			continue
		}
		var foundNets, foundRefs []string
		for _, t := range toks {
			if netname.NetWord.MatchString(t) {
				if c := netname.Canonicalize(t); c != "" {
					if _, ok := p.nets[c]; ok {
						foundNets = append(foundNets, c)
						continue
					}
				}
			}
			if netname.RefWord.MatchString(t) {
				u := strings.ToUpper(t)
				if _, ok := p.refs[u]; ok {
					foundRefs = append(foundRefs, u)
				}
			}
		}
		if len(foundNets) == 1 && len(foundRefs) == 1 {
			out.add(foundNets[0], foundRefs[0])
		}
	}
	return out
}
