// Package bintable reconstructs net to refdes links from opaque binary
// boardviews that store two string tables (nets and components) addressed
// by arrays of 4-byte little-endian offsets, plus a fixed-stride pin table
// indexing into both.
package bintable

import (
	"encoding/binary"
	"regexp"
	"strings"
)

// String is a printable run found in the raw bytes.
type String struct {
	Offset int
	Text   string
}

// ExtractStrings returns every NUL-terminated run of printable ASCII whose
// length lies in [minLen, maxLen]. Surrounding spaces are trimmed from the
// text but the offset is that of the first byte. When allowed is non-nil
// only matching strings are kept.
func ExtractStrings(data []byte, minLen, maxLen int, allowed *regexp.Regexp) []String {
	var out []String
	n := len(data)
	for i := 0; i < n; i++ {
		if !printable(data[i]) {
			continue
		}
		start := i
		for i < n && printable(data[i]) {
			i++
		}
		length := i - start
		if length < minLen || length > maxLen || i >= n || data[i] != 0 {
			continue
		}
		s := strings.TrimSpace(string(data[start:i]))
		if s == "" || (allowed != nil && !allowed.MatchString(s)) {
			continue
		}
		out = append(out, String{Offset: start, Text: s})
	}
	return out
}

func printable(b byte) bool { return b >= 32 && b <= 126 }

// Index maps table offsets onto the strings they address. A string preceded
// by a u32 holding its own length is registered under both offsets, since
// some writers point at the length prefix rather than the text.
type Index map[uint32]string

// NewIndex builds an Index from extracted strings.
func NewIndex(data []byte, strs []String) Index {
	idx := make(Index, len(strs))
	for _, s := range strs {
		idx[uint32(s.Offset)] = s.Text
		if s.Offset >= 4 {
			prefix := binary.LittleEndian.Uint32(data[s.Offset-4:])
			if int(prefix) == rawLen(data, s.Offset) {
				if _, taken := idx[uint32(s.Offset-4)]; !taken {
					idx[uint32(s.Offset-4)] = s.Text
				}
			}
		}
	}
	return idx
}

func rawLen(data []byte, off int) int {
	n := 0
	for off+n < len(data) && data[off+n] != 0 {
		n++
	}
	return n
}

// Filter returns the subset of offsets whose string fully matches re.
func (idx Index) Filter(re *regexp.Regexp) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for off, s := range idx {
		if re.MatchString(s) {
			out[off] = struct{}{}
		}
	}
	return out
}
