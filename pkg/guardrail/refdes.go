package guardrail

import (
	"regexp"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

var refdesRe = regexp.MustCompile(`(?i)\b(?:TP\d{1,5}|FB\d{1,5}|[URCQLDFJPX]\d{1,5})\b`)

// RefDesReport lists the refdes tokens that were not on the board.
type RefDesReport struct {
	Invalid       []string `json:"invalid_refdes"`
	ReplacedCount int      `json:"replaced_count"`
}

// EnforceRefDes replaces every refdes-shaped token of text that is not in
// known with UnknownRefDes. Known tokens are uppercased. Empty text or an
// empty known set leaves text unchanged.
func EnforceRefDes(text string, known map[string]struct{}) (string, RefDesReport) {
	report := RefDesReport{Invalid: []string{}}
	if text == "" || len(known) == 0 {
		return text, report
	}
	invalid := make(map[string]struct{})
	out := refdesRe.ReplaceAllStringFunc(text, func(tok string) string {
		u := strings.ToUpper(tok)
		if _, ok := known[u]; ok {
			return u
		}
		invalid[u] = struct{}{}
		report.ReplacedCount++
		return UnknownRefDes
	})
	for r := range invalid {
		report.Invalid = append(report.Invalid, r)
	}
	sort.Strings(report.Invalid)
	return out, report
}

// SuggestRefDes returns up to k known refdes close to raw.
func SuggestRefDes(raw string, known []string, k int) []string {
	if len(known) == 0 {
		return nil
	}
	return closeMatches(netname.RefDes(raw), known, k, suggestCutoff)
}
