package ingest

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/guardrail"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
)

// Why a netlist came from where it did.
const (
	ReasonSuccess        = "boardview_success"
	ReasonPartial        = "boardview_partial"
	ReasonUnsupported    = "boardview_unsupported"
	ReasonKeyMissing     = "boardview_key_missing"
	ReasonCacheNoReport  = "boardview_cache_no_report"
	ReasonParseFailed    = "boardview_parse_failed_fallback"
	ReasonMissingNetlist = "boardview_success_missing_netlist_fallback"
	ReasonMissingReport  = "boardview_missing_fallback"
	ReasonMissing        = "boardview_missing"
)

// Netlist is the canonical net set a board resolves to.
type Netlist struct {
	BoardID string
	Nets    model.NetSet
	Meta    model.Meta
	// Source is the cache source tag, or netrefs.SourceTextNotes for nets
	// pulled from text notes.
	Source string
	Reason string
}

// Resolve loads the net set of boardID. The ingest report decides whether
// the netlist cache is trusted. A key failure or an unsupported format
// resolves to an empty set on purpose, so callers see that the boardview
// exists but could not be read. Any other miss falls back to net tokens
// found in textPaths, and that set is cached unless the last ingest failed.
func Resolve(store *netrefs.Store, boardID string, textPaths []string) (*Netlist, error) {
	var rep Report
	haveReport := true
	if err := store.LoadReport(boardID, &rep); err != nil {
		if !netrefs.IsNotExist(err) {
			return nil, err
		}
		haveReport = false
	}
	status := strings.ToLower(rep.ParseStatus)

	nets, meta, err := store.LoadNetlist(boardID)
	if err != nil && !netrefs.IsNotExist(err) {
		return nil, err
	}
	source := strings.ToLower(meta.String(netrefs.MetaSource))

	out := &Netlist{BoardID: boardID, Nets: model.NetSet{}, Meta: model.Meta{}}
	empty := func(reason string) *Netlist {
		out.Source, out.Reason = reason, reason
		out.Meta[netrefs.MetaSource] = reason
		out.Meta["source_reason"] = reason
		out.Meta[netrefs.MetaBoardID] = boardID
		return out
	}
	cached := func(reason string) *Netlist {
		out.Nets, out.Meta = nets, meta
		out.Source, out.Reason = source, reason
		out.Meta["source_reason"] = reason
		return out
	}

	var reason string
	switch {
	case status == StatusUnsupported:
		return empty(ReasonUnsupported), nil
	case status == model.StatusSuccess || status == model.StatusPartialSuccess:
		if len(nets) > 0 {
			if status == model.StatusPartialSuccess {
				return cached(ReasonPartial), nil
			}
			return cached(ReasonSuccess), nil
		}
		reason = ReasonMissingNetlist
	case status == StatusFail:
		if rep.ParseError == model.ErrMissingOrInvalidKey.Error() {
			return empty(ReasonKeyMissing), nil
		}
		reason = ReasonParseFailed
	case strings.HasPrefix(source, "boardview_") && len(nets) > 0:
		return cached(ReasonCacheNoReport), nil
	case haveReport:
		reason = ReasonMissingReport
	default:
		reason = ReasonMissing
	}

	texts, err := ReadTexts(textPaths)
	if err != nil {
		return nil, err
	}
	for _, t := range texts {
		for _, n := range guardrail.NetTokens(t) {
			out.Nets.Add(netname.Canonicalize(n))
		}
	}
	out.Source, out.Reason = netrefs.SourceTextNotes, reason
	out.Meta = model.Meta{
		netrefs.MetaSource:  netrefs.SourceTextNotes,
		netrefs.MetaBoardID: boardID,
		"source_reason":     reason,
		"text_files":        len(texts),
	}
	if status != StatusFail && len(out.Nets) > 0 {
		if _, err := store.WriteNetlist(boardID, out.Nets, out.Meta); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadTexts reads text notes as UTF-8. A byte order mark selects UTF-16 and
// is stripped.
func ReadTexts(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		text, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return nil, fmt.Errorf("ingest: decode %s: %w", p, err)
		}
		out = append(out, string(text))
	}
	return out, nil
}
