package model

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

// Builder accumulates nets, components and links while a decoder walks its
// input. It enforces set semantics on links and keeps the net set a superset
// of the linked nets.
type Builder struct {
	nets  NetSet
	refs  map[string][]Link
	seen  map[string]map[string]int
	comps map[string]struct{}
	order []string
	Meta  Meta
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nets:  make(NetSet),
		refs:  make(map[string][]Link),
		seen:  make(map[string]map[string]int),
		comps: make(map[string]struct{}),
		Meta:  make(Meta),
	}
}

// AddNet canonicalizes raw and adds it to the net set. It returns the
// canonical name, or "" when raw names no net.
func (b *Builder) AddNet(raw string) string {
	canon := netname.Canonicalize(raw)
	if canon == "" {
		return ""
	}
	b.nets.Add(canon)
	return canon
}

// HasNet reports whether a canonical net was added.
func (b *Builder) HasNet(canon string) bool { return b.nets.Has(canon) }

// AddComponent records a refdes that exists on the board whether or not it is
// linked to a net.
func (b *Builder) AddComponent(refdes string) {
	refdes = netname.RefDes(refdes)
	if refdes == "" {
		return
	}
	if _, ok := b.comps[refdes]; !ok {
		b.comps[refdes] = struct{}{}
		b.order = append(b.order, refdes)
	}
}

// Link adds net to the net set and attaches l to it. A second link for the
// same refdes on the same sub-board is dropped. It reports whether the link
// was stored.
func (b *Builder) Link(rawNet string, l Link) bool {
	net := b.AddNet(rawNet)
	if net == "" || l.RefDes == "" {
		return false
	}
	if l.Kind == "" {
		l.Kind = netname.Kind(l.RefDes)
	}
	idx, ok := b.seen[net]
	if !ok {
		idx = make(map[string]int)
		b.seen[net] = idx
	}
	if _, dup := idx[l.key()]; dup {
		return false
	}
	idx[l.key()] = len(b.refs[net])
	b.refs[net] = append(b.refs[net], l)
	return true
}

// NetCount is the number of canonical nets collected so far.
func (b *Builder) NetCount() int { return len(b.nets) }

// PairsCount is the number of links collected so far.
func (b *Builder) PairsCount() int {
	n := 0
	for _, links := range b.refs {
		n += len(links)
	}
	return n
}

// Components returns the recorded refdes sorted.
func (b *Builder) Components() []string {
	out := append([]string(nil), b.order...)
	sort.Strings(out)
	return out
}

// ComponentCount is the number of distinct recorded refdes.
func (b *Builder) ComponentCount() int { return len(b.comps) }

// Partial marks the result as a degraded success with a diagnostic tag.
func (b *Builder) Partial(reason string) {
	b.Meta[MetaParseStatus] = StatusPartialSuccess
	b.Meta[MetaParseError] = reason
}

// Result freezes the builder into a ParseResult tagged with format. Counts
// already present in Meta are left alone so decoders can override them.
func (b *Builder) Result(format string) *ParseResult {
	meta := make(Meta, len(b.Meta)+5)
	for k, v := range b.Meta {
		meta[k] = v
	}
	meta[MetaFormat] = format
	setDefault(meta, MetaNetsCount, len(b.nets))
	setDefault(meta, MetaComponentsCount, len(b.comps))
	setDefault(meta, MetaPairsCount, b.PairsCount())
	setDefault(meta, MetaComponents, b.Components())

	refs := make(map[string][]Link, len(b.refs))
	for net, links := range b.refs {
		refs[net] = append([]Link(nil), links...)
	}
	nets := make(NetSet, len(b.nets))
	for n := range b.nets {
		nets.Add(n)
	}
	return &ParseResult{Nets: nets, NetToRefs: refs, Meta: meta}
}

func setDefault(m Meta, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}
