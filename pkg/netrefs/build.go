package netrefs

import (
	"regexp"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/guardrail"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

var (
	textRefRe = regexp.MustCompile(`(?i)\b(?:TP|FB|C|R|L|D|Q|U|F|X|J|P)\d{1,5}\b`)
	lineSepRe = regexp.MustCompile(`\r\n|[\n\v\f\r\x1c\x1d\x1e\x{85}\x{2028}\x{2029}]`)
)

// Co-occurrence weights and limits for BuildFromTexts.
const (
	sameLineScore  = 3
	nearLineScore  = 1
	nearLineWindow = 2
	maxNetsPerLine = 3
	maxRefsPerLine = 5
)

// BuildMeta summarizes a text-built association map.
type BuildMeta struct {
	NetCount    int `json:"net_count"`
	RefDesCount int `json:"refdes_count"`
	PairsCount  int `json:"pairs_count"`
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// lineFacts returns the known nets and known refdes mentioned on one line.
func lineFacts(line string, knownNets, knownRefs map[string]struct{}) (nets, refs []string) {
	ns := make(map[string]struct{})
	for _, raw := range guardrail.NetTokens(line) {
		if c := netname.Canonicalize(raw); c != "" {
			if _, ok := knownNets[c]; ok {
				ns[c] = struct{}{}
			}
		}
	}
	rs := make(map[string]struct{})
	for _, tok := range textRefRe.FindAllString(line, -1) {
		u := strings.ToUpper(tok)
		if _, ok := knownRefs[u]; ok {
			rs[u] = struct{}{}
		}
	}
	return sortedKeys(ns), sortedKeys(rs)
}

// BuildFromTexts associates known nets with known refdes by proximity in
// free text such as repair notes. A refdes on the same line as a net scores
// 3 and one within two lines scores 1. Lines naming more than three nets, or
// more than five refdes, are treated as lists and carry no evidence. Each
// net keeps its DefaultPerNetCap best refdes, ordered by score, then evidence
// count, then name.
func BuildFromTexts(texts []string, knownNets, knownRefs map[string]struct{}) (map[string][]string, BuildMeta) {
	scores := make(map[string]map[string]int)
	evidence := make(map[string]map[string]int)
	credit := func(net, ref string, points int) {
		if scores[net] == nil {
			scores[net] = make(map[string]int)
			evidence[net] = make(map[string]int)
		}
		scores[net][ref] += points
		evidence[net][ref]++
	}

	for _, text := range texts {
		if text == "" {
			continue
		}
		lines := lineSepRe.Split(text, -1)
		netsBy := make([][]string, len(lines))
		refsBy := make([][]string, len(lines))
		for i, ln := range lines {
			netsBy[i], refsBy[i] = lineFacts(ln, knownNets, knownRefs)
		}
		for i, nets := range netsBy {
			if len(nets) == 0 || len(nets) > maxNetsPerLine {
				continue
			}
			if same := refsBy[i]; len(same) > 0 && len(same) <= maxRefsPerLine {
				for _, n := range nets {
					for _, r := range same {
						credit(n, r, sameLineScore)
					}
				}
			}
			for j := max(0, i-nearLineWindow); j < min(len(refsBy), i+nearLineWindow+1); j++ {
				near := refsBy[j]
				if j == i || len(near) == 0 || len(near) > maxRefsPerLine {
					continue
				}
				for _, n := range nets {
					for _, r := range near {
						credit(n, r, nearLineScore)
					}
				}
			}
		}
	}

	out := make(map[string][]string, len(scores))
	pairs := 0
	for net, byRef := range scores {
		refs := make([]string, 0, len(byRef))
		for r := range byRef {
			refs = append(refs, r)
		}
		sort.Slice(refs, func(i, j int) bool {
			a, b := refs[i], refs[j]
			if byRef[a] != byRef[b] {
				return byRef[a] > byRef[b]
			}
			if evidence[net][a] != evidence[net][b] {
				return evidence[net][a] > evidence[net][b]
			}
			return a < b
		})
		if len(refs) > DefaultPerNetCap {
			refs = refs[:DefaultPerNetCap]
		}
		out[net] = refs
		pairs += len(refs)
	}
	return out, BuildMeta{NetCount: len(out), RefDesCount: len(knownRefs), PairsCount: pairs}
}
