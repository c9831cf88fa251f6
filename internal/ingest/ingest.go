// Package ingest turns the files collected for one board into its caches. It
// finds boardview candidates, decodes the best one (one per sub-board for a
// dual-board id) and writes the boardview cache, the netlist cache and an
// ingest report.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/internal/diag"
	"github.com/OpenTraceLab/OpenTraceBV/internal/memo"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
)

const comp = "ingest"

// Report parse status values. Success and partial success come from the
// decoder result.
const (
	StatusFail        = "fail"
	StatusUnsupported = "unsupported_format"
)

// Meta keys added to merged dual-board results.
const (
	MetaSubBoards    = "sub_boards"
	MetaSubBoardMeta = "sub_board_meta"
)

// ErrNoCandidates means no path held anything that looks like a boardview.
var ErrNoCandidates = errors.New("no_boardview_files")

var dualBoardRe = regexp.MustCompile(`^(\d{3}-\d{5})_(\d{3}-\d{5})$`)

// SubBoards splits a dual-board id such as 820-01955_820-01970 into its two
// board numbers. Any other id returns nil.
func SubBoards(boardID string) []string {
	m := dualBoardRe.FindStringSubmatch(strings.TrimSpace(boardID))
	if m == nil {
		return nil
	}
	return []string{m[1], m[2]}
}

// Parser decodes one boardview file.
type Parser interface {
	Parse(path string, data []byte) (*model.ParseResult, error)
}

// Attempt records one decode of one candidate.
type Attempt struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	SubBoard string `json:"sub_board,omitempty"`
	Error    string `json:"error,omitempty"`
	Class    string `json:"error_class,omitempty"`
	MemoHit  bool   `json:"memo_hit,omitempty"`
}

// Outputs are the artifacts a run wrote.
type Outputs struct {
	Boardview string `json:"boardview_cache,omitempty"`
	Netlist   string `json:"netlist_cache,omitempty"`
	Report    string `json:"ingest_report,omitempty"`
}

// Report is the per-board ingest report.
type Report struct {
	BoardID         string      `json:"board_id"`
	Detected        []Candidate `json:"detected_boardview_files"`
	Selected        string      `json:"selected_boardview_file,omitempty"`
	SelectedFiles   []string    `json:"selected_boardview_files,omitempty"`
	SubBoards       []string    `json:"sub_boards,omitempty"`
	ParserUsed      string      `json:"parser_used,omitempty"`
	ParseStatus     string      `json:"parse_status"`
	ParseError      string      `json:"parse_error,omitempty"`
	ErrorClass      string      `json:"error_class,omitempty"`
	Attempts        []Attempt   `json:"attempts"`
	NetsCount       int         `json:"nets_count"`
	PairsCount      int         `json:"pairs_count"`
	ComponentsCount int         `json:"components_count"`
	Outputs         Outputs     `json:"outputs"`
	UpdatedAt       string      `json:"updated_at"`
}

// Job ingests the files of one board.
type Job struct {
	BoardID string
	Paths   []string
	// Parser decodes candidates. Nil selects boardview.NewDecoder.
	Parser Parser
	Store  *netrefs.Store
	// Memo, when set, is consulted before decoding and filled after.
	Memo *memo.Memo
	// PerNetCap bounds the links persisted per net. Zero selects
	// netrefs.DefaultPerNetCap.
	PerNetCap int
	Logger    *slog.Logger
}

func (j *Job) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return diag.Discard()
}

func (j *Job) parser() Parser {
	if j.Parser != nil {
		return j.Parser
	}
	return boardview.NewDecoder()
}

// Run scans, decodes and persists. Decode failures end up in the returned
// report; the error is reserved for scan and write failures and for ctx
// cancellation.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	if j.Store == nil {
		return nil, errors.New("ingest: no store")
	}
	if strings.TrimSpace(j.BoardID) == "" {
		return nil, errors.New("ingest: empty board id")
	}
	log := j.logger()
	timer := diag.Start(log, comp, "ingest", diag.KeyBoardID, j.BoardID)

	cands, err := Scan(j.Paths)
	if err != nil {
		timer.Fail("ingest", err, diag.KeyBoardID, j.BoardID)
		return nil, err
	}
	rep := &Report{BoardID: j.BoardID, Detected: cands, Attempts: []Attempt{}}
	if rep.Detected == nil {
		rep.Detected = []Candidate{}
	}

	res, err := j.decode(ctx, rep, cands)
	if ctxErr := ctx.Err(); ctxErr != nil {
		timer.Fail("ingest", ctxErr, diag.KeyBoardID, j.BoardID)
		return nil, ctxErr
	}
	switch {
	case res != nil:
		rep.ParseStatus = res.Status()
		if rep.ParseStatus == model.StatusPartialSuccess {
			rep.ParseError = res.Meta.String(model.MetaParseError)
		}
		rep.ParserUsed = res.Format()
		if err := j.persist(rep, res); err != nil {
			timer.Fail("ingest", err, diag.KeyBoardID, j.BoardID)
			return nil, err
		}
	case errors.Is(err, model.ErrUnsupportedFormat):
		rep.ParseStatus = StatusUnsupported
		rep.ParseError = diag.Reason(err)
		rep.ErrorClass = string(diag.Classify(err))
	default:
		rep.ParseStatus = StatusFail
		rep.ParseError = diag.Reason(err)
		rep.ErrorClass = string(diag.Classify(err))
	}

	rep.UpdatedAt = j.Store.Stamp()
	rep.Outputs.Report = j.Store.Path(netrefs.DirIngestReports, j.BoardID)
	if _, err := j.Store.WriteReport(j.BoardID, rep); err != nil {
		timer.Fail("ingest", err, diag.KeyBoardID, j.BoardID)
		return nil, fmt.Errorf("ingest: %w", err)
	}

	if res == nil {
		timer.Fail("ingest", err, diag.KeyBoardID, j.BoardID, "status", rep.ParseStatus)
	} else {
		timer.Finish("ingest", rep.NetsCount, diag.KeyBoardID, j.BoardID,
			"status", rep.ParseStatus, diag.KeyFormat, rep.ParserUsed)
	}
	return rep, nil
}

// persist writes the boardview and netlist caches for a decoded board.
func (j *Job) persist(rep *Report, res *model.ParseResult) error {
	capN := j.PerNetCap
	if capN <= 0 {
		capN = netrefs.DefaultPerNetCap
	}
	ix := netrefs.NewIndex(j.BoardID, res, capN)
	bvPath, err := j.Store.WriteBoardview(ix)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	nlMeta := model.Meta{
		netrefs.MetaSource:        netrefs.SourceFor(res.Format()),
		model.MetaFormat:          res.Format(),
		model.MetaParseStatus:     rep.ParseStatus,
		"selected_boardview_file": rep.Selected,
	}
	nlPath, err := j.Store.WriteNetlist(j.BoardID, res.Nets, nlMeta)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	rep.Outputs.Boardview = bvPath
	rep.Outputs.Netlist = nlPath
	rep.NetsCount = len(res.Nets)
	rep.PairsCount = ix.PairsCount()
	rep.ComponentsCount = len(res.Components())
	return nil
}

// decode picks the result for the board. A dual-board id whose two board
// numbers both match candidate file names decodes one file per sub-board
// and merges them; otherwise the candidates are tried in priority order.
func (j *Job) decode(ctx context.Context, rep *Report, cands []Candidate) (*model.ParseResult, error) {
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}
	if parts := SubBoards(j.BoardID); parts != nil {
		groups := [][]Candidate{matching(cands, parts[0]), matching(cands, parts[1])}
		if len(groups[0]) > 0 && len(groups[1]) > 0 {
			rep.SubBoards = parts
			return j.merge(ctx, rep, parts, groups)
		}
	}
	res, c, err := j.first(ctx, rep, cands, "")
	if err != nil {
		return nil, err
	}
	rep.Selected = c.Path
	rep.SelectedFiles = []string{c.Path}
	return res, nil
}

func matching(cands []Candidate, part string) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if strings.Contains(strings.ToUpper(filepath.Base(c.Path)), strings.ToUpper(part)) {
			out = append(out, c)
		}
	}
	return out
}

// first decodes candidates in order and returns the first success. When all
// fail, a key failure wins over other errors so the report shows that a key
// is what is missing; otherwise the highest priority candidate's error is
// returned.
func (j *Job) first(ctx context.Context, rep *Report, cands []Candidate, sub string) (*model.ParseResult, Candidate, error) {
	var firstErr error
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, Candidate{}, err
		}
		res, hit, err := j.parse(c)
		a := Attempt{Path: c.Path, Format: c.Format, SubBoard: sub, MemoHit: hit}
		if err != nil {
			a.Error = err.Error()
			a.Class = string(diag.Classify(err))
			rep.Attempts = append(rep.Attempts, a)
			if firstErr == nil || (errors.Is(err, model.ErrMissingOrInvalidKey) && !errors.Is(firstErr, model.ErrMissingOrInvalidKey)) {
				firstErr = err
			}
			continue
		}
		rep.Attempts = append(rep.Attempts, a)
		return res, c, nil
	}
	return nil, Candidate{}, firstErr
}

// parse decodes one candidate, going through the memo when one is set.
func (j *Job) parse(c Candidate) (*model.ParseResult, bool, error) {
	log := j.logger()
	timer := diag.Start(log, comp+".decode", "decode", diag.KeyFile, c.Path, diag.KeyFormat, c.Format)
	data, err := os.ReadFile(c.Path)
	if err != nil {
		timer.Fail("decode", err, diag.KeyFile, c.Path)
		return nil, false, fmt.Errorf("ingest: %w", err)
	}
	if j.Memo != nil {
		res, ok, err := j.Memo.Get(data, c.det.Format)
		if err != nil {
			log.Warn("memo lookup failed", diag.KeyFile, c.Path, "err", err)
		} else if ok {
			timer.Finish("decode", len(res.Nets), diag.KeyFile, c.Path, "memo", true)
			return res, true, nil
		}
	}
	res, err := j.parser().Parse(c.Path, data)
	if err != nil {
		timer.Fail("decode", err, diag.KeyFile, c.Path, diag.KeyFormat, c.Format)
		return nil, false, err
	}
	if j.Memo != nil {
		if err := j.Memo.Put(data, c.det.Format, res); err != nil {
			log.Warn("memo store failed", diag.KeyFile, c.Path, "err", err)
		}
	}
	timer.Finish("decode", len(res.Nets), diag.KeyFile, c.Path, diag.KeyFormat, res.Format())
	return res, false, nil
}

// merge decodes one file per sub-board and combines them, tagging every link
// with its sub-board. A missing sub-board degrades the result to partial
// success.
func (j *Job) merge(ctx context.Context, rep *Report, parts []string, groups [][]Candidate) (*model.ParseResult, error) {
	b := model.NewBuilder()
	subMeta := make(map[string]any, len(parts))
	var (
		formats []string
		missing []string
		partial bool
		failErr error
	)
	for i, part := range parts {
		res, c, err := j.first(ctx, rep, groups[i], part)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			missing = append(missing, part)
			if failErr == nil || errors.Is(err, model.ErrMissingOrInvalidKey) {
				failErr = err
			}
			continue
		}
		rep.SelectedFiles = append(rep.SelectedFiles, c.Path)
		formats = append(formats, res.Format())
		for _, n := range res.Nets.Sorted() {
			b.AddNet(n)
		}
		for _, ref := range res.Components() {
			b.AddComponent(ref)
		}
		for net, links := range res.NetToRefs {
			for _, l := range links {
				l.SubBoard = part
				b.Link(net, l)
			}
		}
		subMeta[part] = res.Meta
		if res.Status() == model.StatusPartialSuccess {
			partial = true
		}
	}
	if len(formats) == 0 {
		return nil, failErr
	}
	rep.Selected = rep.SelectedFiles[0]
	switch {
	case len(missing) > 0:
		b.Partial("sub_board_missing:" + strings.Join(missing, ","))
	case partial:
		b.Partial("sub_board_partial")
	}
	b.Meta[MetaSubBoards] = parts
	b.Meta[MetaSubBoardMeta] = subMeta
	return b.Result(strings.Join(formats, "+")), nil
}
