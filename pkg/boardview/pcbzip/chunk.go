package pcbzip

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bvraw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

const (
	// TextThreshold is the printable ratio at which a chunk is treated as text.
	TextThreshold = 0.85
	ratioWindow   = 200000
	previewLen    = 200
)

// Markers are the keywords counted when scoring a text chunk.
var Markers = []string{bvraw.Header, "PART_NAME", "PIN_NET", "NET", "REF", "REFDES", "PAD", "PIN", "NAME"}

// Chunk is one successfully decompressed candidate stream.
type Chunk struct {
	Offset          int            `json:"offset"`
	Method          Method         `json:"method"`
	CompressedLen   int            `json:"compressed_len"`
	DecompressedLen int            `json:"decompressed_len"`
	SHA1            string         `json:"sha1"`
	Preview         string         `json:"preview"`
	LikelyText      bool           `json:"likely_text"`
	Encoding        string         `json:"encoding"`
	PrintableRatio  float64        `json:"printable_ratio"`
	Score           int            `json:"score"`
	MarkerHits      map[string]int `json:"marker_hits"`
	Data            []byte         `json:"-"`
	text            string
}

// Text returns the decoded text of a text chunk, or "" for binary chunks.
func (c *Chunk) Text() string { return c.text }

func isPrintable(b byte) bool {
	return b == '\t' || b == '\n' || b == '\r' || (b >= 32 && b <= 126)
}

// PrintableRatio is the share of printable bytes in the first 200000 bytes
// of data.
func PrintableRatio(data []byte) float64 {
	window := data[:min(len(data), ratioWindow)]
	if len(window) == 0 {
		return 0
	}
	n := 0
	for _, b := range window {
		if isPrintable(b) {
			n++
		}
	}
	return float64(n) / float64(len(window))
}

// Preview renders up to limit bytes with non-printable bytes shown as '.'.
func Preview(data []byte, limit int) string {
	var b strings.Builder
	for _, c := range data[:min(len(data), limit)] {
		if isPrintable(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// decodeText returns data as UTF-8 when it is valid UTF-8, otherwise as
// Latin-1, with the encoding name used.
func decodeText(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), ""), "latin-1"
	}
	return string(s), "latin-1"
}

// MarkerHits counts occurrences of each marker present in text.
func MarkerHits(text string) map[string]int {
	hits := make(map[string]int)
	for _, m := range Markers {
		if n := strings.Count(text, m); n > 0 {
			hits[m] = n
		}
	}
	return hits
}

// Score ranks a decompressed text chunk. The weights are:
//
//	100 * printable ratio (truncated)
//	+200 when the structured-text header is present
//	+10 per distinct marker keyword
//	+min(100, net-like tokens / 5)
//	+min(100, refdes-like tokens / 5)
func Score(text string, printableRatio float64) int {
	score := int(printableRatio * 100)
	if strings.Contains(text, bvraw.Header) {
		score += 200
	}
	score += 10 * len(MarkerHits(text))
	score += min(100, len(netname.NetToken.FindAllStringIndex(text, -1))/5)
	score += min(100, len(netname.RefToken.FindAllStringIndex(text, -1))/5)
	return score
}

// collectChunks decompresses the candidates in order until the total output
// budget is spent.
func collectChunks(data []byte, cands []Candidate, opts Options) []Chunk {
	var (
		chunks []Chunk
		total  int
	)
	for _, c := range cands {
		if total >= opts.MaxTotalOut {
			break
		}
		out, consumed, err := Decompress(data, c.Offset, c.Method, opts.MaxStreamOut, opts.MaxStreamIn)
		if err != nil || len(out) == 0 || consumed <= 0 {
			continue
		}
		total += len(out)
		chunks = append(chunks, newChunk(c, out, consumed))
	}
	return chunks
}

func newChunk(c Candidate, out []byte, consumed int) Chunk {
	sum := sha1.Sum(out)
	ch := Chunk{
		Offset:          c.Offset,
		Method:          c.Method,
		CompressedLen:   consumed,
		DecompressedLen: len(out),
		SHA1:            hex.EncodeToString(sum[:]),
		Preview:         Preview(out, previewLen),
		Encoding:        "binary",
		MarkerHits:      map[string]int{},
		Data:            out,
	}
	ratio := PrintableRatio(out)
	ch.PrintableRatio = float64(int(ratio*10000+0.5)) / 10000
	if ratio >= TextThreshold {
		ch.LikelyText = true
		ch.text, ch.Encoding = decodeText(out)
		ch.Score = Score(ch.text, ratio)
		ch.MarkerHits = MarkerHits(ch.text)
	}
	return ch
}

// byScore returns the chunks ordered by descending score. Equal scores keep
// scan order.
func byScore(chunks []Chunk) []*Chunk {
	out := make([]*Chunk, len(chunks))
	for i := range chunks {
		out[i] = &chunks[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
