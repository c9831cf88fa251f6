// Package pcbzip decodes boardview containers whose payload is hidden in one
// or more compressed streams at unknown offsets. Candidate offsets are found
// by magic and header scans, every candidate is decompressed under byte
// ceilings, and the resulting chunks are scored, mined for nets, refdes and
// pairings, and merged with any JSON embedded in the raw file.
package pcbzip

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bintable"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bvraw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/tvw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// FormatTag is stored under meta.format.
const FormatTag = "PCB_EMBEDDED_ZLIB"

// ReasonNoPairs tags a result with nets and refdes but no pairing.
const ReasonNoPairs = "pcb_no_pairs"

const (
	bvrawSearchDepth = 10
	topChunks        = 5
	debugChunks      = 3
	sampleSize       = 20
	subBoardUnknown  = "unknown"
	fallbackEntries  = 50
	fallbackFrac     = 0.8
)

// TopChunk summarizes a high-scoring chunk in parse metadata.
type TopChunk struct {
	Offset          int    `json:"offset"`
	Method          Method `json:"method"`
	DecompressedLen int    `json:"decompressed_len"`
	Score           int    `json:"score"`
	Preview         string `json:"preview"`
	SHA1            string `json:"sha1"`
}

// Analysis is the discovery stage of a parse: every candidate tried, every
// chunk that decompressed, and every JSON value found in the raw bytes.
type Analysis struct {
	Candidates []Candidate `json:"candidates"`
	Chunks     []Chunk     `json:"chunks"`
	Dense      bool        `json:"dense"`
	JSON       []any       `json:"-"`
}

// Ranked returns the chunks by descending score.
func (a *Analysis) Ranked() []*Chunk { return byScore(a.Chunks) }

// TextChunks counts chunks classified as text.
func (a *Analysis) TextChunks() int {
	n := 0
	for i := range a.Chunks {
		if a.Chunks[i].LikelyText {
			n++
		}
	}
	return n
}

// Top returns up to n summaries of the best-scoring chunks.
func (a *Analysis) Top(n int) []TopChunk {
	ranked := a.Ranked()
	out := make([]TopChunk, 0, min(n, len(ranked)))
	for _, c := range ranked[:min(n, len(ranked))] {
		out = append(out, TopChunk{
			Offset:          c.Offset,
			Method:          c.Method,
			DecompressedLen: c.DecompressedLen,
			Score:           c.Score,
			Preview:         c.Preview,
			SHA1:            c.SHA1,
		})
	}
	return out
}

// Analyze runs candidate discovery and decompression. When the sparse pass
// yields nothing and opts.Dense is set, a dense pass with ten times the
// candidate budget is tried.
func Analyze(data []byte, opts Options) *Analysis {
	opts.defaults()
	a := &Analysis{
		Candidates: CollectCandidates(data, opts.MaxStreams, false),
		JSON:       ParseJSONCandidates(data),
	}
	a.Chunks = collectChunks(data, a.Candidates, opts)
	if len(a.Chunks) == 0 && opts.Dense {
		a.Dense = true
		a.Chunks = collectChunks(data, CollectCandidates(data, opts.MaxStreams*10, true), opts)
	}
	return a
}

// Parse decodes a compressed container. An embedded structured-text payload
// wins outright; otherwise nets and refdes are mined from every chunk and
// paired by the line heuristics. It fails with model.ErrNoNetsOrRefdes when
// nothing usable was found.
func Parse(data []byte, opts Options) (*model.ParseResult, error) {
	opts.defaults()
	a := Analyze(data, opts)
	log := opts.Logger
	if len(a.Chunks) == 0 {
		log.Debug("pcb: no chunks decoded", "dense", a.Dense, "hint", EnvDenseScan+"=1")
	}
	for _, c := range a.Ranked()[:min(debugChunks, len(a.Chunks))] {
		log.Debug("pcb: candidate",
			"offset", fmt.Sprintf("0x%x", c.Offset),
			"method", c.Method,
			"out_len", c.DecompressedLen,
			"printable", c.PrintableRatio,
			"score", c.Score)
	}
	if opts.DebugDir != "" {
		if err := WriteDump(opts.DebugDir, opts.DebugName, a, debugChunks); err != nil {
			log.Warn("pcb: debug dump failed", "dir", opts.DebugDir, "err", err)
		}
	}

	if res := embeddedText(a); res != nil {
		return res, nil
	}

	facts := newJSONFacts()
	for _, v := range a.JSON {
		facts.walk(v, "", nil)
	}

	nets, refs := collectTokens(data, a, facts)
	if len(nets) == 0 || len(refs) == 0 {
		return nil, model.ErrNoNetsOrRefdes
	}

	pairs := make(pairSet)
	for net, set := range facts.pairs {
		for ref := range set {
			pairs.add(net, ref)
		}
	}
	for i := range a.Chunks {
		c := &a.Chunks[i]
		if !c.LikelyText {
			continue
		}
		for net, list := range PairText(c.Text(), nets, refs) {
			for _, ref := range list {
				pairs.add(net, ref)
			}
		}
	}

	b := model.NewBuilder()
	b.Meta[MetaCandidateStreams] = len(a.Candidates)
	b.Meta[MetaStreamsDecompressed] = len(a.Chunks)
	b.Meta[MetaTextChunks] = a.TextChunks()
	b.Meta[MetaJSONObjects] = len(a.JSON)
	b.Meta[MetaTopChunks] = a.Top(topChunks)
	if a.Dense {
		b.Meta[MetaDenseScan] = true
	}

	var binPairs []bintable.Pair
	if len(pairs) == 0 {
		b.Partial(ReasonNoPairs)
		bin, err := bintable.Reconstruct(data, bintable.Options{
			NetPattern:    netname.NetWord,
			RefPattern:    netname.RefWord,
			MinEntries:    fallbackEntries,
			SearchFrac:    fallbackFrac,
			MinPinRecords: opts.MinPinRecords,
		})
		if err != nil {
			log.Debug("pcb: binary table fallback failed", "err", err)
		} else {
			if set := toSet(bin.Nets); len(set) > len(nets) {
				nets = set
			}
			if set := toSet(bin.Comps); len(set) > len(refs) {
				refs = set
			}
			for k, v := range bin.Meta() {
				b.Meta[k] = v
			}
			binPairs = bin.Pairs
		}
	}

	for n := range nets {
		b.AddNet(n)
	}
	for r := range refs {
		b.AddComponent(r)
	}
	for _, net := range sortedSet(pairs) {
		for _, ref := range sortedSet(pairs[net]) {
			b.Link(net, facts.link(ref))
		}
	}
	for _, p := range binPairs {
		l := model.NewLink(p.Comp)
		l.SubBoard = subBoardUnknown
		b.Link(p.Net, l)
	}
	if len(binPairs) > 0 && b.PairsCount() > 0 {
		b.Meta[model.MetaParseStatus] = model.StatusSuccess
		delete(b.Meta, model.MetaParseError)
	} else if len(pairs) > 0 {
		b.Meta[model.MetaParseStatus] = model.StatusSuccess
	}

	b.Meta[MetaSampleNets] = sample(nets)
	b.Meta[MetaSampleRefDes] = sample(refs)
	return b.Result(FormatTag), nil
}

// Metadata keys specific to this decoder.
const (
	MetaCandidateStreams    = "candidate_streams"
	MetaStreamsDecompressed = "streams_decompressed"
	MetaTextChunks          = "text_chunks"
	MetaJSONObjects         = "json_objects"
	MetaTopChunks           = "top_chunks"
	MetaSampleNets          = "sample_nets"
	MetaSampleRefDes        = "sample_refdes"
	MetaDenseScan           = "dense_scan"
	MetaContainer           = "container"
	MetaStreamOffset        = "stream_offset"
	MetaStreamMethod        = "stream_method"
)

// embeddedText returns the structured-text parse of the first of the top
// chunks that carries the structured-text header and parses cleanly.
func embeddedText(a *Analysis) *model.ParseResult {
	ranked := a.Ranked()
	for _, c := range ranked[:min(bvrawSearchDepth, len(ranked))] {
		if !c.LikelyText || !strings.Contains(c.Text(), bvraw.Header) {
			continue
		}
		res, err := bvraw.ParseText(bvraw.FromHeader(c.Text()))
		if err != nil {
			continue
		}
		res.Meta[MetaContainer] = FormatTag
		res.Meta[MetaStreamOffset] = c.Offset
		res.Meta[MetaStreamMethod] = string(c.Method)
		return res
	}
	return nil
}

// collectTokens gathers nets and refdes from JSON, text chunks, strings in
// binary chunks and, when that is not enough, strings in the raw file.
func collectTokens(data []byte, a *Analysis, facts *jsonFacts) (map[string]struct{}, map[string]struct{}) {
	nets := make(map[string]struct{}, len(facts.nets))
	refs := make(map[string]struct{}, len(facts.refs))
	for n := range facts.nets {
		nets[n] = struct{}{}
	}
	for r := range facts.refs {
		refs[r] = struct{}{}
	}
	addString := func(s string) {
		if netname.NetWord.MatchString(s) {
			if c := netname.Canonicalize(s); c != "" {
				nets[c] = struct{}{}
			}
		}
		if netname.RefWord.MatchString(s) {
			refs[strings.ToUpper(s)] = struct{}{}
		}
	}
	for i := range a.Chunks {
		c := &a.Chunks[i]
		if !c.LikelyText {
			for _, s := range tvw.Strings(c.Data, 3) {
				addString(s)
			}
			continue
		}
		for _, m := range netname.NetToken.FindAllString(c.Text(), -1) {
			if n := netname.Canonicalize(m); n != "" {
				nets[n] = struct{}{}
			}
		}
		for _, m := range netname.RefToken.FindAllString(c.Text(), -1) {
			refs[strings.ToUpper(m)] = struct{}{}
		}
	}
	if len(nets) == 0 || len(refs) == 0 {
		for _, s := range tvw.Strings(data, 3) {
			addString(s)
		}
	}
	return nets, refs
}

// link builds the link for ref with whatever placement the JSON walk found.
func (f *jsonFacts) link(ref string) model.Link {
	l := model.NewLink(ref)
	l.SubBoard = subBoardUnknown
	ci, ok := f.info[ref]
	if !ok {
		return l
	}
	if ci.SubBoard != "" {
		l.SubBoard = ci.SubBoard
	}
	if ci.X != nil && ci.Y != nil {
		l = l.At(*ci.X, *ci.Y)
	}
	l.Layer = ci.Layer
	return l
}

func toSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		out[s] = struct{}{}
	}
	return out
}

func sortedSet[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sample(m map[string]struct{}) []string {
	s := sortedSet(m)
	return s[:min(sampleSize, len(s))]
}
