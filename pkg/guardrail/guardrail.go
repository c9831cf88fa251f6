// Package guardrail checks net names claimed in free text or in structured
// measurement plans against the canonical net set of a board. Close
// misspellings are rewritten and reported; anything else is replaced with a
// sentinel and listed with suggestions for a human to resolve.
package guardrail

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Sentinels written in place of names that could not be confirmed.
const (
	UnknownNet    = "[UNKNOWN_NET]"
	UnknownRefDes = "[UNKNOWN_REFDES]"
)

// Auto-fix reasons.
const (
	ReasonRailRename = "apple_silicon_mapping"
	ReasonFuzzy      = "fuzzy_match"
)

// Hard-coded rail rename: the first name is rewritten to the second when the
// board has it.
const (
	renamedRail = "PPBUS_G3H"
	currentRail = "PPBUS_AON"
)

// MaxSuggestions bounds the suggestions listed per unknown name.
const MaxSuggestions = 5

var (
	netRe     = regexp.MustCompile(`(?i)\b(?:PP[A-Z0-9_.]+|[A-Z][A-Z0-9_.]*_[A-Z0-9_.]+|[0-9][A-Z0-9_.]*_[A-Z0-9_.]+)\b`)
	measKeyRe = regexp.MustCompile(`(?i)\b((?:CHECK_|VERIFY_|MEASURE_|TEST_|READ_))([A-Z0-9_.]+?)(_(?:R2G|DIODE))?\b`)

	// Prefixes that mark a token as a measurement key rather than a net.
	keyPrefixes = []string{"CHECK_", "VERIFY_", "MEASURE_", "READ_"}
	// The key prefixes stripped from a plan item key, which also accept TEST_.
	itemPrefixes = []string{"CHECK_", "VERIFY_", "MEASURE_", "TEST_", "READ_"}

	signalSuffixes = []string{
		"EN", "PWR", "CLK", "RST", "RESET", "SCL", "SDA", "INT", "SW",
		"PG", "PGOOD", "WAKE", "SLEEP", "BOOT", "ISENSE", "VSENSE",
	}
)

// Fix is one rewrite applied to a claimed name.
type Fix struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Report lists what one Enforce call found.
type Report struct {
	BoardID          string              `json:"board_id"`
	InvalidNets      []string            `json:"invalid_nets_detected"`
	InvalidPlanItems []string            `json:"invalid_plan_items"`
	AutoFixes        []Fix               `json:"auto_fixes_applied"`
	Suggestions      map[string][]string `json:"suggestions"`
}

// Clean reports whether nothing needed fixing or flagging.
func (r Report) Clean() bool {
	return len(r.InvalidNets) == 0 && len(r.InvalidPlanItems) == 0 && len(r.AutoFixes) == 0
}

// Item is a structured measurement claim, such as one step of a diagnostic
// plan. Net and Node may also be given under Meta.
type Item struct {
	Key  string         `json:"key"`
	Net  string         `json:"net,omitempty"`
	Node string         `json:"node,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Item metadata keys written by Enforce.
const (
	MetaNetValid          = "net_valid"
	MetaNeedsConfirmation = "needs_confirmation"
	MetaNetOriginal       = "net_original"
	MetaSuggestions       = "suggestions"
	MetaKeyNormalizedFrom = "key_normalized_from"
)

// Enforcer validates names against one board's canonical net set. The set
// must not change while a call is in flight.
type Enforcer struct {
	BoardID   string
	Threshold float64

	nets   map[string]struct{}
	sorted []string
}

// New returns an enforcer for the given canonical nets.
func New(boardID string, nets []string) *Enforcer {
	e := &Enforcer{BoardID: boardID, Threshold: DefaultFuzzyThreshold, nets: make(map[string]struct{}, len(nets))}
	for _, n := range nets {
		if n == "" {
			continue
		}
		if _, ok := e.nets[n]; !ok {
			e.nets[n] = struct{}{}
			e.sorted = append(e.sorted, n)
		}
	}
	sort.Strings(e.sorted)
	return e
}

// Valid reports whether raw canonicalizes to a known net.
func (e *Enforcer) Valid(raw string) bool {
	_, ok := e.nets[netname.Canonicalize(raw)]
	return ok
}

// Suggest returns up to k known nets close to raw: same-prefix matches
// first, then matches from the whole set.
func (e *Enforcer) Suggest(raw string, k int) []string {
	if len(e.sorted) == 0 {
		return nil
	}
	target := netname.Canonicalize(raw)
	prefix := prefixOf(target)
	var same []string
	for _, n := range e.sorted {
		if strings.HasPrefix(n, prefix) {
			same = append(same, n)
		}
	}
	out := closeMatches(target, same, k, suggestCutoff)
	if len(out) < k {
		seen := make(map[string]bool, len(out))
		for _, s := range out {
			seen[s] = true
		}
		for _, s := range closeMatches(target, e.sorted, k, suggestCutoff) {
			if len(out) >= k {
				break
			}
			if !seen[s] {
				out = append(out, s)
			}
		}
	}
	return out
}

// resolve maps an unknown canonical name to a known net through the rail
// rename or a confident fuzzy match.
func (e *Enforcer) resolve(canon string) (string, string, bool) {
	if canon == renamedRail {
		if _, ok := e.nets[currentRail]; ok {
			return currentRail, ReasonRailRename, true
		}
	}
	threshold := e.Threshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if m, ok := bestMatch(canon, e.sorted, threshold); ok {
		return m, ReasonFuzzy, true
	}
	return "", "", false
}

func hasSignalSuffix(tok string) bool {
	for _, s := range signalSuffixes {
		if strings.HasSuffix(tok, s) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func hasAnyPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}

// NetTokens returns the raw net-shaped tokens of text, skipping measurement
// keys and tokens with neither an underscore nor a digit.
func NetTokens(text string) []string {
	var out []string
	for _, tok := range netRe.FindAllString(text, -1) {
		canon := netname.Canonicalize(tok)
		if canon == "" {
			continue
		}
		if _, ok := hasAnyPrefix(canon, keyPrefixes); ok {
			continue
		}
		if strings.HasPrefix(canon, "PP") || strings.Contains(canon, "_") || hasDigit(canon) {
			out = append(out, tok)
		}
	}
	return out
}

// SplitKey splits a measurement key such as CHECK_PP3V3_S0_R2G into its
// uppercased prefix, net part and suffix. All three are empty when s holds
// no key.
func SplitKey(s string) (prefix, net, suffix string) {
	m := measKeyRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", ""
	}
	return strings.ToUpper(m[1]), m[2], m[3]
}

// session accumulates the findings of one Enforce call.
type session struct {
	e            *Enforcer
	report       Report
	replacements map[string]string
	keyReplace   map[string]string
	invalid      map[string]struct{}
	invalidCanon map[string]struct{}
}

func (s *session) fix(from, to, reason string) {
	s.report.AutoFixes = append(s.report.AutoFixes, Fix{From: from, To: to, Reason: reason})
}

func (s *session) markInvalid(raw string) {
	if _, ok := s.invalid[raw]; ok {
		return
	}
	s.invalid[raw] = struct{}{}
	s.invalidCanon[netname.Canonicalize(raw)] = struct{}{}
	s.report.Suggestions[raw] = s.e.Suggest(raw, MaxSuggestions)
}

// Enforce validates text and items. It never fails: with an empty net set
// text and items come back unchanged with an empty report.
func (e *Enforcer) Enforce(text string, items []Item) (string, []Item, Report) {
	s := &session{
		e: e,
		report: Report{
			BoardID:          e.BoardID,
			InvalidNets:      []string{},
			InvalidPlanItems: []string{},
			AutoFixes:        []Fix{},
			Suggestions:      map[string][]string{},
		},
		replacements: make(map[string]string),
		keyReplace:   make(map[string]string),
		invalid:      make(map[string]struct{}),
		invalidCanon: make(map[string]struct{}),
	}
	if len(e.nets) == 0 {
		return text, append([]Item(nil), items...), s.report
	}

	s.scanTokens(text)
	s.scanKeys(text)
	out := s.rewrite(text)
	if len(s.invalid) > 0 {
		names := make([]string, 0, len(s.invalid))
		for raw := range s.invalid {
			names = append(names, raw)
		}
		sort.Strings(names)
		out = strings.TrimRight(out, " \t\r\n") + "\n\n" + fmt.Sprintf(
			"Net(s) not found in loaded %s netlist: %s. "+
				"Please confirm the exact net name or provide a schematic/boardview snippet.",
			e.BoardID, strings.Join(names, ", "))
	}

	cleaned := make([]Item, 0, len(items))
	invalidItems := make(map[string]struct{})
	for _, it := range items {
		item, ok := s.item(it)
		if !ok {
			invalidItems[it.Key] = struct{}{}
		}
		cleaned = append(cleaned, item)
	}

	for raw := range s.invalid {
		s.report.InvalidNets = append(s.report.InvalidNets, raw)
	}
	sort.Strings(s.report.InvalidNets)
	for k := range invalidItems {
		s.report.InvalidPlanItems = append(s.report.InvalidPlanItems, k)
	}
	sort.Strings(s.report.InvalidPlanItems)
	return out, cleaned, s.report
}

// scanTokens checks the free-standing net tokens of text.
func (s *session) scanTokens(text string) {
	seen := make(map[string]struct{})
	for _, raw := range NetTokens(text) {
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		canon := netname.Canonicalize(raw)
		if _, ok := s.e.nets[canon]; ok {
			continue
		}
		if fixed, reason, ok := s.e.resolve(canon); ok {
			s.fix(raw, fixed, reason)
			s.replacements[raw] = fixed
			continue
		}
		if !strings.HasPrefix(canon, "PP") && !hasDigit(canon) && !hasSignalSuffix(canon) {
			continue
		}
		s.markInvalid(raw)
	}
}

// scanKeys checks the net part of every measurement key in text.
func (s *session) scanKeys(text string) {
	for _, m := range measKeyRe.FindAllStringSubmatch(text, -1) {
		whole, netPart, suffix := m[0], m[2], m[3]
		if _, ok := s.keyReplace[whole]; ok {
			continue
		}
		canon := netname.Canonicalize(netPart)
		if _, ok := s.e.nets[canon]; ok {
			continue
		}
		if fixed, reason, ok := s.e.resolve(canon); ok {
			s.fix(netPart, fixed, reason)
			s.keyReplace[whole] = "CHECK_" + fixed + suffix
			continue
		}
		s.markInvalid(netPart)
	}
}

func (s *session) rewrite(text string) string {
	if len(s.replacements) == 0 && len(s.keyReplace) == 0 && len(s.invalid) == 0 {
		return text
	}
	canonReplace := make(map[string]string, len(s.replacements))
	for raw, to := range s.replacements {
		canonReplace[netname.Canonicalize(raw)] = to
	}
	isInvalid := func(raw string) bool {
		if _, ok := s.invalid[raw]; ok {
			return true
		}
		_, ok := s.invalidCanon[netname.Canonicalize(raw)]
		return ok
	}

	text = measKeyRe.ReplaceAllStringFunc(text, func(tok string) string {
		if to, ok := s.keyReplace[tok]; ok {
			return to
		}
		prefix, netPart, suffix := SplitKey(tok)
		if isInvalid(netPart) {
			return prefix + UnknownNet + suffix
		}
		return tok
	})
	return netRe.ReplaceAllStringFunc(text, func(tok string) string {
		if to, ok := s.replacements[tok]; ok {
			return to
		}
		if _, ok := s.invalid[tok]; ok {
			return UnknownNet
		}
		canon := netname.Canonicalize(tok)
		if to, ok := canonReplace[canon]; ok {
			return to
		}
		if _, ok := s.invalidCanon[canon]; ok {
			return UnknownNet
		}
		return tok
	})
}

func metaString(meta map[string]any, key string) string {
	v, _ := meta[key].(string)
	return v
}

// item validates one plan item and reports whether it names a known net.
func (s *session) item(it Item) (Item, bool) {
	meta := make(map[string]any, len(it.Meta)+2)
	for k, v := range it.Meta {
		meta[k] = v
	}
	out := it
	out.Meta = meta

	target := it.Net
	if target == "" {
		target = metaString(meta, "net")
	}
	if p, ok := hasAnyPrefix(strings.ToUpper(target), keyPrefixes); ok {
		target = target[len(p):]
	}

	keyU := strings.ToUpper(it.Key)
	prefix, netPart, suffix := SplitKey(keyU)
	base := keyU
	if suffix != "" {
		base = strings.TrimSuffix(base, suffix)
	}
	if p, ok := hasAnyPrefix(base, itemPrefixes); ok {
		base = base[len(p):]
	}
	netPart = strings.TrimSuffix(netPart, "_R2G")
	netPart = strings.TrimSuffix(netPart, "_DIODE")
	if netPart != "" {
		if target != "" && s.e.Valid(target) {
			target = netname.Canonicalize(target)
		} else {
			target = netPart
		}
	}
	if target == "" {
		target = base
	}

	node := it.Node
	if node == "" {
		node = metaString(meta, "node")
	}
	if strings.HasPrefix(node, "PORT:") {
		meta[MetaNetValid] = true
		meta[MetaNeedsConfirmation] = false
		return out, true
	}
	if target == "" {
		meta[MetaNetValid] = false
		meta[MetaNeedsConfirmation] = true
		return out, false
	}

	valid := true
	if !s.e.Valid(target) {
		if fixed, reason, ok := s.e.resolve(netname.Canonicalize(target)); ok {
			s.fix(target, fixed, reason)
			target = fixed
		} else {
			valid = false
			meta[MetaNetOriginal] = target
			meta[MetaSuggestions] = s.e.Suggest(target, MaxSuggestions)
		}
	}
	meta[MetaNetValid] = valid
	meta[MetaNeedsConfirmation] = !valid

	if !valid {
		out.Net = UnknownNet
		out.Key = "CHECK_" + UnknownNet + suffix
		return out, false
	}
	out.Net = target
	switch {
	case netPart != "":
		if prefix != "" && prefix != "CHECK_" {
			meta[MetaKeyNormalizedFrom] = it.Key
		}
		out.Key = "CHECK_" + netname.Canonicalize(target) + suffix
	default:
		out.Key = "CHECK_" + netname.Canonicalize(target)
	}
	return out, true
}
