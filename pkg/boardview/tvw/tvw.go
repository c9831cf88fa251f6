// Package tvw is the last-resort decoder for boardview files with no known
// structure. It classifies printable strings as nets or reference
// designators and links adjacent NUL-terminated pairs.
package tvw

import (
	"regexp"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

// FormatTag is stored under meta.format.
const FormatTag = "TVW_STRINGS"

// MinPairs is the pairing count below which a result is marked partial.
const MinPairs = 10

// ReasonNoMapping tags a result with too few links.
const ReasonNoMapping = "tvw_no_mapping"

const minStringLen = 3

var (
	netRe = regexp.MustCompile(`^(?:PP[\w.+-]+|[A-Z][A-Z0-9]+_[A-Z0-9_]+|[0-9][A-Z0-9]+_[A-Z0-9_]+|GND|GROUND|VBUS|VBAT|VDD[A-Z0-9_]+|VCC[A-Z0-9_]+)$`)
	refRe = regexp.MustCompile(`(?i)^(?:TPU|TP|FB|PU|PC|PR|PL|PD|PQ|PJ|PF|PT|PM|PS|CN|RN|U|Q|L|C|R|D|F|J|P|X|Y)\d{1,5}[A-Z0-9]*$`)
	// Footprint, package and silkscreen vocabulary that collides with the
	// net grammar.
	netDeny = []string{
		"TEST_POINT", "POINT", "MIL", "MILS",
		"0402", "0603", "0805", "1206", "0201", "01005",
		"RES", "CAP", "COIL", "IND", "LED", "DIODE", "SOLDER", "SHORT",
		"PAD", "PADS", "SILK", "TOP", "BOTTOM", "BOARD",
		"QFN", "DFN", "BGA", "SOT", "QFP", "LGA", "SOIC", "TQFP", "SOP", "SMT",
		"BLM", "NTC", "THERM", "FUSE",
	}
	// Refdes-prefixed labels such as C1234_FOO are component annotations.
	netDenyPrefix = regexp.MustCompile(`(?i)^[CRLDUQFPJ][0-9]{3,}_`)
	railPrefixes  = []string{"PP", "VDD", "VCC", "VBUS", "VBAT"}
)

// LooksLikeNet reports whether a raw string is plausibly a net name.
func LooksLikeNet(tok string) bool {
	if !netRe.MatchString(tok) || strings.ContainsAny(tok, `\:`) {
		return false
	}
	upper := strings.ToUpper(tok)
	for _, s := range netDeny {
		if strings.Contains(upper, s) {
			return false
		}
	}
	if netDenyPrefix.MatchString(tok) {
		return false
	}
	digits := 0
	for _, r := range tok {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 6 {
		for _, p := range railPrefixes {
			if strings.HasPrefix(tok, p) {
				return true
			}
		}
		return false
	}
	return true
}

// LooksLikeRefDes reports whether a raw string is plausibly a reference
// designator.
func LooksLikeRefDes(tok string) bool {
	return !strings.Contains(tok, "_") && refRe.MatchString(tok)
}

func printable(b byte) bool { return b >= 32 && b <= 126 }

// Strings returns every printable ASCII run of at least minLen bytes.
func Strings(data []byte, minLen int) []string {
	var out []string
	start := -1
	for i, b := range data {
		if printable(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minLen {
			out = append(out, string(data[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(data)-start >= minLen {
		out = append(out, string(data[start:]))
	}
	return out
}

// NullStrings returns the printable runs of at least minLen bytes that are
// terminated by a NUL byte.
func NullStrings(data []byte, minLen int) []string {
	var out []string
	start := -1
	for i, b := range data {
		if printable(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if b == 0 && start >= 0 && i-start >= minLen {
			out = append(out, string(data[start:i]))
		}
		start = -1
	}
	return out
}

// Parse classifies the strings in data and returns whatever it can. It never
// fails; weak results are marked partial.
func Parse(data []byte) (*model.ParseResult, error) {
	return ParseTagged(data, FormatTag), nil
}

// ParseTagged is Parse with a caller-chosen meta.format tag, used when a
// magic-detected format falls back to the string heuristic.
func ParseTagged(data []byte, format string) *model.ParseResult {
	b := model.NewBuilder()
	for _, s := range Strings(data, minStringLen) {
		switch {
		case LooksLikeNet(s):
			b.AddNet(s)
		case LooksLikeRefDes(s):
			b.AddComponent(s)
		}
	}

	nul := NullStrings(data, minStringLen)
	for i := 0; i+1 < len(nul); i++ {
		a, c := nul[i], nul[i+1]
		var net, ref string
		switch {
		case LooksLikeNet(a) && LooksLikeRefDes(c):
			net, ref = a, c
		case LooksLikeRefDes(a) && LooksLikeNet(c):
			net, ref = c, a
		default:
			continue
		}
		b.Link(net, model.NewLink(ref))
	}

	if b.PairsCount() < MinPairs {
		b.Partial(ReasonNoMapping)
	}
	return b.Result(format)
}
