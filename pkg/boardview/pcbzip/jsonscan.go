package pcbzip

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
)

var (
	jsonMarker  = []byte("===PCB")
	jsonNeedles = [][]byte{
		[]byte(`{"net"`), []byte(`{"nets"`), []byte(`{"NET"`), []byte(`{"Net"`),
		[]byte(`"net":[`), []byte(`"NET":[`),
	}
)

// JSONStarts returns candidate offsets of embedded JSON objects: the first
// '{' after the last "===PCB" marker, and the nearest '{' at or before each
// net-key literal. Offsets are sorted and unique.
func JSONStarts(data []byte) []int {
	set := make(map[int]struct{})
	if m := bytes.LastIndex(data, jsonMarker); m >= 0 {
		if b := bytes.IndexByte(data[m:], '{'); b >= 0 {
			set[m+b] = struct{}{}
		}
	}
	for _, needle := range jsonNeedles {
		for start := 0; ; {
			i := bytes.Index(data[start:], needle)
			if i < 0 {
				break
			}
			idx := start + i
			if b := bytes.LastIndexByte(data[:idx+1], '{'); b >= 0 {
				set[b] = struct{}{}
			}
			start = idx + 1
		}
	}
	out := make([]int, 0, len(set))
	for off := range set {
		out = append(out, off)
	}
	sort.Ints(out)
	return out
}

// ExtractJSONBlock returns the balanced object or array starting at start.
// String literals (with escapes) are skipped while matching. It returns nil
// when start is not an opening bracket or the block never closes.
func ExtractJSONBlock(data []byte, start int) []byte {
	if start < 0 || start >= len(data) || (data[start] != '{' && data[start] != '[') {
		return nil
	}
	depth := 1
	inStr, escape := false, false
	for i := start + 1; i < len(data); i++ {
		b := data[i]
		if inStr {
			switch {
			case escape:
				escape = false
			case b == '\\':
				escape = true
			case b == '"':
				inStr = false
			}
			continue
		}
		switch b {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return data[start : i+1]
			}
		}
	}
	return nil
}

// ParseJSONCandidates decodes every balanced block found at JSONStarts.
// Blocks that are not valid JSON are skipped.
func ParseJSONCandidates(data []byte) []any {
	var out []any
	for _, start := range JSONStarts(data) {
		blob := ExtractJSONBlock(data, start)
		if blob == nil {
			continue
		}
		if !utf8.Valid(blob) {
			blob = bytes.ToValidUTF8(blob, nil)
		}
		var v any
		if err := json.Unmarshal(blob, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// componentInfo is placement data gathered for a refdes from JSON.
type componentInfo struct {
	X, Y     *float64
	Layer    string
	SubBoard string
}

// jsonFacts accumulates what a JSON walk recovers.
type jsonFacts struct {
	nets  map[string]struct{}
	refs  map[string]struct{}
	pairs map[string]map[string]struct{}
	info  map[string]*componentInfo
}

func newJSONFacts() *jsonFacts {
	return &jsonFacts{
		nets:  make(map[string]struct{}),
		refs:  make(map[string]struct{}),
		pairs: make(map[string]map[string]struct{}),
		info:  make(map[string]*componentInfo),
	}
}

func (f *jsonFacts) pair(net, ref string) {
	set, ok := f.pairs[net]
	if !ok {
		set = make(map[string]struct{})
		f.pairs[net] = set
	}
	set[ref] = struct{}{}
}

// lookup finds a key case-insensitively.
func lookup(keys map[string]string, obj map[string]any, name string) (any, bool) {
	k, ok := keys[name]
	if !ok {
		return nil, false
	}
	return obj[k], true
}

func netValues(v any) []string {
	var out []string
	add := func(s string) {
		if netname.NetWord.MatchString(s) {
			if c := netname.Canonicalize(s); c != "" {
				out = append(out, c)
			}
		}
	}
	switch t := v.(type) {
	case string:
		add(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

func refValues(v any) []string {
	var out []string
	add := func(s string) {
		if netname.RefWord.MatchString(s) {
			out = append(out, strings.ToUpper(s))
		}
	}
	switch t := v.(type) {
	case string:
		add(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// walk visits a decoded JSON tree. parent is the lowercased key under which
// v was found; active are the nets inherited from enclosing objects.
func (f *jsonFacts) walk(v any, parent string, active []string) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			f.walk(item, parent, active)
		}
	case map[string]any:
		f.walkObject(t, parent, active)
	}
}

func (f *jsonFacts) walkObject(obj map[string]any, parent string, active []string) {
	order := sortedKeys(obj)
	keys := make(map[string]string, len(obj))
	for _, k := range order {
		keys[strings.ToLower(k)] = k
	}

	var netVal, refVal any
	if v, ok := lookup(keys, obj, "net"); ok {
		netVal = v
	} else if v, ok := lookup(keys, obj, "net_name"); ok {
		netVal = v
	} else if parent == "net" || parent == "nets" {
		netVal, _ = lookup(keys, obj, "name")
	}
	if v, ok := lookup(keys, obj, "alias"); ok {
		if s, ok := v.(string); ok && netname.NetWord.MatchString(s) {
			if c := netname.Canonicalize(s); c != "" {
				f.nets[c] = struct{}{}
			}
		}
	}
	for _, k := range []string{"ref", "refdes", "component", "part"} {
		if v, ok := lookup(keys, obj, k); ok {
			refVal = v
			break
		}
	}
	if parent == "component" || parent == "components" || parent == "parts" {
		if v, ok := lookup(keys, obj, "name"); ok {
			refVal = v
		}
	}

	nets := netValues(netVal)
	for _, n := range nets {
		f.nets[n] = struct{}{}
	}
	refs := refValues(refVal)
	for _, r := range refs {
		f.refs[r] = struct{}{}
	}
	if len(nets) > 0 {
		active = nets
	}
	if len(refs) > 0 {
		for _, n := range active {
			for _, r := range refs {
				f.pair(n, r)
			}
		}
		f.recordInfo(obj, keys, refs)
		f.walkPins(obj, keys, refs)
	}

	for _, k := range order {
		f.walk(obj[k], strings.ToLower(k), active)
	}
}

func (f *jsonFacts) recordInfo(obj map[string]any, keys map[string]string, refs []string) {
	var (
		x, y  *float64
		layer string
		found bool
	)
	if v, ok := lookup(keys, obj, "x"); ok {
		found = true
		if n, ok := v.(float64); ok {
			x = &n
		}
	}
	if v, ok := lookup(keys, obj, "y"); ok {
		found = true
		if n, ok := v.(float64); ok {
			y = &n
		}
	}
	if v, ok := lookup(keys, obj, "layer"); ok {
		found = true
		layer, _ = v.(string)
	}
	if v, ok := lookup(keys, obj, "side"); ok && layer == "" {
		found = true
		layer, _ = v.(string)
	}
	if !found {
		return
	}
	sub := ""
	if l := strings.ToLower(layer); strings.Contains(l, "top") {
		sub = "top"
	} else if strings.Contains(l, "bottom") || strings.Contains(l, "bot") {
		sub = "bottom"
	}
	for _, r := range refs {
		ci, ok := f.info[r]
		if !ok {
			ci = &componentInfo{}
			f.info[r] = ci
		}
		if x != nil {
			ci.X = x
		}
		if y != nil {
			ci.Y = y
		}
		if layer != "" {
			ci.Layer = layer
		}
		if sub != "" {
			ci.SubBoard = sub
		}
	}
}

// walkPins pairs a component's refdes with the nets on its pin list.
func (f *jsonFacts) walkPins(obj map[string]any, keys map[string]string, refs []string) {
	var pins any
	for _, k := range []string{"pins", "pin", "pads"} {
		if v, ok := lookup(keys, obj, k); ok {
			pins = v
			break
		}
	}
	list, ok := pins.([]any)
	if !ok {
		return
	}
	for _, p := range list {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		pkeys := make(map[string]string, len(pm))
		for _, k := range sortedKeys(pm) {
			pkeys[strings.ToLower(k)] = k
		}
		v, ok := lookup(pkeys, pm, "net")
		if !ok {
			v, _ = lookup(pkeys, pm, "net_name")
		}
		s, ok := v.(string)
		if !ok || !netname.NetWord.MatchString(s) {
			continue
		}
		canon := netname.Canonicalize(s)
		if canon == "" {
			continue
		}
		f.nets[canon] = struct{}{}
		for _, r := range refs {
			f.pair(canon, r)
		}
	}
}
