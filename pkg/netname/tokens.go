package netname

import "regexp"

// Token grammars shared by the decoders that mine nets and reference
// designators out of unstructured text or string tables.
var (
	// NetToken finds net-like tokens in free text: PP rails and
	// underscore-joined identifiers.
	NetToken = regexp.MustCompile(`(?i)\b(?:PP[A-Z0-9_.]+|[A-Z][A-Z0-9_.]*_[A-Z0-9_.]+)\b`)
	// RefToken finds refdes-like tokens in free text, including test-point
	// families and suffixed designators such as U1200A.
	RefToken = regexp.MustCompile(`(?i)\b(?:TPU|TPE|TPJ|TPP|TP|T|FB|C|R|L|D|Q|U|F|X|J|P|S|Y|Z)\d{1,5}[A-Z0-9]*\b`)

	// NetWord is NetToken anchored to a whole string.
	NetWord = regexp.MustCompile(`(?i)^(?:PP[A-Z0-9_.]+|[A-Z][A-Z0-9_.]*_[A-Z0-9_.]+)$`)
	// RefWord is RefToken anchored to a whole string.
	RefWord = regexp.MustCompile(`(?i)^(?:TPU|TPE|TPJ|TPP|TP|T|FB|C|R|L|D|Q|U|F|X|J|P|S|Y|Z)\d{1,5}[A-Z0-9]*$`)
	// TableRefWord matches a bare refdes as stored in binary component
	// tables.
	TableRefWord = regexp.MustCompile(`(?i)^(?:TP|FB|C|R|L|D|Q|U|F|X|J|P)\d{1,5}$`)
	// TableString limits binary string extraction to identifier-like text.
	TableString = regexp.MustCompile(`^[A-Za-z0-9_./\-+:#]+$`)
)
