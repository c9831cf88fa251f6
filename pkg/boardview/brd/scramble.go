package brd

import "bytes"

// Signature marks a scrambled dialect-A file. It is the scrambled form of
// "str_", the start of the str_length: block.
var Signature = []byte{0x23, 0xE2, 0x63, 0x28}

func passthrough(b byte) bool { return b == 0x0D || b == 0x0A || b == 0x00 }

// Descramble reverses the whole-file byte transform when data starts with
// Signature. CR, LF and NUL bytes are left untouched. The second result
// reports whether the transform was applied.
func Descramble(data []byte) ([]byte, bool) {
	if !bytes.HasPrefix(data, Signature) {
		return data, false
	}
	out := make([]byte, len(data))
	for i, c := range data {
		if passthrough(c) {
			out[i] = c
			continue
		}
		out[i] = ^((c >> 6 & 3) | c<<2)
	}
	return out, true
}

// Scramble applies the forward transform. Plain bytes that are CR, LF or
// NUL are left untouched, matching Descramble.
func Scramble(data []byte) []byte {
	out := make([]byte, len(data))
	for i, p := range data {
		if passthrough(p) {
			out[i] = p
			continue
		}
		x := ^p
		out[i] = x>>2 | x<<6
	}
	return out
}
