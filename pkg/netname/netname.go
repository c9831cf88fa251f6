// Package netname normalizes net names and reference designators so that
// every decoder, the guardrail and the ranking index agree on one spelling.
package netname

import (
	"regexp"
	"strings"
)

var (
	edgeRe      = regexp.MustCompile(`^[^A-Z0-9]+|[^A-Z0-9]+$`)
	separatorRe = regexp.MustCompile(`[\s\-/]+`)
	underRe     = regexp.MustCompile(`_+`)
)

// Unconnected is the marker decoders use for pins that carry no net.
const Unconnected = "UNCONNECTED"

// Canonicalize returns the canonical spelling of a raw net name.
//
// The result is uppercase, has '.' replaced by '_', carries no leading or
// trailing punctuation, and has runs of whitespace, '-' and '/' collapsed into
// a single '_'. An empty result means the input named no net at all.
// Canonicalize(Canonicalize(s)) == Canonicalize(s) for every s.
func Canonicalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ".", "_")
	s = edgeRe.ReplaceAllString(s, "")
	s = separatorRe.ReplaceAllString(s, "_")
	s = underRe.ReplaceAllString(s, "_")
	return s
}

// IsUnconnected reports whether a canonical net is the unconnected marker or
// one of its numbered variants (UNCONNECTED_12).
func IsUnconnected(canon string) bool {
	return strings.HasPrefix(canon, Unconnected)
}

// RefDes returns the uppercase, trimmed form of a reference designator.
func RefDes(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Kind derives the ranking class of a reference designator: "TP" for test
// points, "FB" for ferrite beads, otherwise the first letter.
func Kind(refdes string) string {
	switch {
	case refdes == "":
		return ""
	case strings.HasPrefix(refdes, "TP"):
		return "TP"
	case strings.HasPrefix(refdes, "FB"):
		return "FB"
	default:
		return refdes[:1]
	}
}

// SafeID maps a board identifier onto a file-system friendly key: uppercase
// with anything outside [A-Z0-9_-] replaced by '_'. An empty id maps to
// "UNKNOWN".
func SafeID(boardID string) string {
	id := strings.ToUpper(boardID)
	if id == "" {
		return "UNKNOWN"
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
