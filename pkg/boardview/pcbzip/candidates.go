package pcbzip

import (
	"bytes"
	"sort"
)

// Method names the codec a candidate stream is tried with.
type Method string

const (
	MethodZlib    Method = "zlib"
	MethodDeflate Method = "deflate"
	MethodGzip    Method = "gzip"
	MethodXZ      Method = "xz"
	MethodZstd    Method = "zstd"
	MethodLZ4     Method = "lz4"
)

var (
	zlibHeaders = [][]byte{{0x78, 0x01}, {0x78, 0x5e}, {0x78, 0x9c}, {0x78, 0xda}}
	magicGzip   = []byte{0x1f, 0x8b}
	magicXZ     = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4    = []byte{0x04, 0x22, 0x4d, 0x18}

	// Stream headers are sometimes preceded by a short length or tag field,
	// so each hit is also tried a few bytes earlier.
	backtracks = []int{0, 1, 2, 4, 8, 16, 32, 64}
)

const (
	sparseStep = 4096
	denseStep  = 256
)

// Candidate is an offset worth trying to decompress with Method.
type Candidate struct {
	Offset int    `json:"offset"`
	Method Method `json:"method"`
}

func scanMagic(data, magic []byte, maxHits int) []int {
	var hits []int
	for start := 0; len(hits) < maxHits; {
		i := bytes.Index(data[start:], magic)
		if i < 0 {
			break
		}
		hits = append(hits, start+i)
		start += i + 1
	}
	return hits
}

func scanZlib(data []byte, maxHits int) []int {
	var hits []int
	for _, sig := range zlibHeaders {
		hits = append(hits, scanMagic(data, sig, maxHits)...)
		if len(hits) >= maxHits {
			break
		}
	}
	sort.Ints(hits)
	out := hits[:0]
	for i, h := range hits {
		if i > 0 && h == hits[i-1] {
			continue
		}
		out = append(out, h)
	}
	if len(out) > maxHits {
		out = out[:maxHits]
	}
	return out
}

func expand(offsets []int) []int {
	seen := make(map[int]struct{}, len(offsets)*len(backtracks))
	var out []int
	for _, off := range offsets {
		for _, b := range backtracks {
			v := off - b
			if v < 0 {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// CollectCandidates lists the offsets to try, in order: zlib headers, then
// gzip, xz, zstd and lz4 magics (each widened by the backtrack set), then
// raw deflate probes on a fixed grid until maxHits is reached. Dense mode
// uses a finer grid. Duplicate (offset, method) pairs are dropped.
func CollectCandidates(data []byte, maxHits int, dense bool) []Candidate {
	var cands []Candidate
	add := func(m Method, offs []int) {
		for _, o := range offs {
			cands = append(cands, Candidate{Offset: o, Method: m})
		}
	}
	add(MethodZlib, expand(scanZlib(data, maxHits)))
	add(MethodGzip, expand(scanMagic(data, magicGzip, maxHits)))
	add(MethodXZ, expand(scanMagic(data, magicXZ, maxHits)))
	add(MethodZstd, expand(scanMagic(data, magicZstd, maxHits)))
	add(MethodLZ4, expand(scanMagic(data, magicLZ4, maxHits)))

	if remaining := maxHits - len(cands); remaining > 0 {
		step := sparseStep
		if dense {
			step = denseStep
		}
		var grid []int
		for off := 0; off < len(data) && len(grid) < remaining; off += step {
			grid = append(grid, off)
		}
		add(MethodDeflate, grid)
	}

	seen := make(map[Candidate]struct{}, len(cands))
	out := make([]Candidate, 0, min(len(cands), maxHits))
	for _, c := range cands {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) >= maxHits {
			break
		}
	}
	return out
}
