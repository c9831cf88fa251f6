package netrefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Cache directories under the data dir, one JSON document per board.
const (
	DirBoardviews    = "boardviews"
	DirNetlists      = "netlists"
	DirNetRefs       = "net_refs"
	DirIngestReports = "ingest_reports"
)

// Cache metadata keys.
const (
	MetaBoardID   = "board_id"
	MetaNetCount  = "net_count"
	MetaUpdatedAt = "updated_at"
	MetaSource    = "source"
)

// SourceTextNotes marks associations built from free text.
const SourceTextNotes = "kb_text"

// timeLayout matches the timestamps earlier caches were written with.
const timeLayout = "2006-01-02T15:04:05.000000"

// Store reads and writes the per-board caches under one data directory.
// Writes replace the whole document; two writers racing on one board id
// leave the last one's document.
type Store struct {
	Dir string
	// Now stamps updated_at. Nil selects time.Now.
	Now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the cache file for boardID in the given cache directory.
func (s *Store) Path(kind, boardID string) string {
	return filepath.Join(s.Dir, kind, netname.SafeID(boardID)+".json")
}

// Stamp returns the current time in the cache timestamp layout.
func (s *Store) Stamp() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Format(timeLayout)
}

// BoardviewCache is the persisted form of a parsed board.
type BoardviewCache struct {
	Nets      []string                `json:"nets"`
	NetToRefs map[string][]model.Link `json:"net_to_refdes"`
	Meta      model.Meta              `json:"meta"`

	// Older documents used this key for the mapping.
	Legacy map[string][]model.Link `json:"net_to_refs,omitempty"`
}

// Result converts the cache back into a parse result.
func (c *BoardviewCache) Result() *model.ParseResult {
	refs := c.NetToRefs
	if refs == nil {
		refs = c.Legacy
	}
	if refs == nil {
		refs = map[string][]model.Link{}
	}
	nets := make(model.NetSet, len(c.Nets))
	for _, n := range c.Nets {
		nets.Add(n)
	}
	meta := c.Meta
	if meta == nil {
		meta = model.Meta{}
	}
	return &model.ParseResult{Nets: nets, NetToRefs: refs, Meta: meta}
}

func setDefault(m model.Meta, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// SourceFor is the cache source tag of a decoder format tag.
func SourceFor(format string) string {
	if format == "" {
		return "boardview"
	}
	return "boardview_" + strings.ToLower(format)
}

// WriteBoardview ranks, caps and persists ix. It returns the file written.
func (s *Store) WriteBoardview(ix *Index) (string, error) {
	meta := make(model.Meta, len(ix.Meta)+4)
	for k, v := range ix.Meta {
		meta[k] = v
	}
	setDefault(meta, MetaBoardID, ix.BoardID)
	setDefault(meta, MetaNetCount, len(ix.Nets))
	setDefault(meta, model.MetaPairsCount, ix.PairsCount())
	setDefault(meta, MetaSource, SourceFor(meta.String(model.MetaFormat)))
	setDefault(meta, MetaUpdatedAt, s.Stamp())

	doc := BoardviewCache{Nets: ix.Nets.Sorted(), NetToRefs: ix.NetToRefs, Meta: meta}
	path := s.Path(DirBoardviews, ix.BoardID)
	if err := writeJSON(path, doc); err != nil {
		return "", fmt.Errorf("netrefs: write boardview cache: %w", err)
	}
	return path, nil
}

// LoadBoardview reads the boardview cache of boardID. A missing cache
// returns an error matching os.ErrNotExist.
func (s *Store) LoadBoardview(boardID string) (*model.ParseResult, error) {
	var doc BoardviewCache
	if err := readJSON(s.Path(DirBoardviews, boardID), &doc); err != nil {
		return nil, fmt.Errorf("netrefs: load boardview cache: %w", err)
	}
	return doc.Result(), nil
}

// LoadIndex reads the boardview cache of boardID as an index.
func (s *Store) LoadIndex(boardID string) (*Index, error) {
	res, err := s.LoadBoardview(boardID)
	if err != nil {
		return nil, err
	}
	return &Index{BoardID: boardID, Nets: res.Nets, NetToRefs: res.NetToRefs, Meta: res.Meta}, nil
}

type netlistDoc struct {
	Nets      []string   `json:"nets"`
	Meta      model.Meta `json:"meta"`
	Source    string     `json:"source,omitempty"`
	UpdatedAt string     `json:"updated_at,omitempty"`
	NetCount  int        `json:"net_count"`
}

// WriteNetlist persists the canonical net set of boardID.
func (s *Store) WriteNetlist(boardID string, nets model.NetSet, meta model.Meta) (string, error) {
	m := make(model.Meta, len(meta)+3)
	for k, v := range meta {
		m[k] = v
	}
	setDefault(m, MetaUpdatedAt, s.Stamp())
	setDefault(m, MetaBoardID, boardID)
	m[MetaNetCount] = len(nets)

	doc := netlistDoc{
		Nets:      nets.Sorted(),
		Meta:      m,
		Source:    m.String(MetaSource),
		UpdatedAt: m.String(MetaUpdatedAt),
		NetCount:  len(nets),
	}
	path := s.Path(DirNetlists, boardID)
	if err := writeJSON(path, doc); err != nil {
		return "", fmt.Errorf("netrefs: write netlist cache: %w", err)
	}
	return path, nil
}

// LoadNetlist reads the netlist cache of boardID.
func (s *Store) LoadNetlist(boardID string) (model.NetSet, model.Meta, error) {
	var doc netlistDoc
	if err := readJSON(s.Path(DirNetlists, boardID), &doc); err != nil {
		return nil, nil, fmt.Errorf("netrefs: load netlist cache: %w", err)
	}
	nets := make(model.NetSet, len(doc.Nets))
	for _, n := range doc.Nets {
		nets.Add(n)
	}
	if doc.Meta == nil {
		doc.Meta = model.Meta{}
	}
	return nets, doc.Meta, nil
}

type netRefsDoc struct {
	NetToRefdes map[string][]string `json:"net_to_refdes"`
	Meta        model.Meta          `json:"meta"`
	Source      string              `json:"source,omitempty"`
	UpdatedAt   string              `json:"updated_at,omitempty"`
	Pairs       map[string][]string `json:"pairs,omitempty"`
	PairsCount  int                 `json:"pairs_count"`
}

// WriteNetRefs persists a text-built association map for boardID.
func (s *Store) WriteNetRefs(boardID string, netToRefdes map[string][]string, meta model.Meta) (string, error) {
	m := make(model.Meta, len(meta)+3)
	for k, v := range meta {
		m[k] = v
	}
	setDefault(m, MetaUpdatedAt, s.Stamp())
	setDefault(m, MetaSource, SourceTextNotes)
	setDefault(m, MetaBoardID, boardID)

	pairs := 0
	for _, refs := range netToRefdes {
		pairs += len(refs)
	}
	doc := netRefsDoc{
		NetToRefdes: netToRefdes,
		Meta:        m,
		Source:      m.String(MetaSource),
		UpdatedAt:   m.String(MetaUpdatedAt),
		Pairs:       netToRefdes,
		PairsCount:  pairs,
	}
	path := s.Path(DirNetRefs, boardID)
	if err := writeJSON(path, doc); err != nil {
		return "", fmt.Errorf("netrefs: write net refs cache: %w", err)
	}
	return path, nil
}

// LoadNetRefs reads the text-built association map of boardID.
func (s *Store) LoadNetRefs(boardID string) (map[string][]string, model.Meta, error) {
	var doc netRefsDoc
	if err := readJSON(s.Path(DirNetRefs, boardID), &doc); err != nil {
		return nil, nil, fmt.Errorf("netrefs: load net refs cache: %w", err)
	}
	refs := doc.NetToRefdes
	if len(refs) == 0 {
		refs = doc.Pairs
	}
	if refs == nil {
		refs = map[string][]string{}
	}
	if doc.Meta == nil {
		doc.Meta = model.Meta{}
	}
	setDefault(doc.Meta, model.MetaPairsCount, doc.PairsCount)
	if doc.Source != "" {
		setDefault(doc.Meta, MetaSource, doc.Source)
	}
	return refs, doc.Meta, nil
}

// WriteReport persists an ingest report for boardID.
func (s *Store) WriteReport(boardID string, report any) (string, error) {
	path := s.Path(DirIngestReports, boardID)
	if err := writeJSON(path, report); err != nil {
		return "", fmt.Errorf("netrefs: write ingest report: %w", err)
	}
	return path, nil
}

// LoadReport decodes the ingest report of boardID into v.
func (s *Store) LoadReport(boardID string, v any) error {
	if err := readJSON(s.Path(DirIngestReports, boardID), v); err != nil {
		return fmt.Errorf("netrefs: load ingest report: %w", err)
	}
	return nil
}

// IsNotExist reports whether err means the cache was never written.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
