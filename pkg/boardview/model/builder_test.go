package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestBuilderLinkSetSemantics(t *testing.T) {
	b := NewBuilder()
	if !b.Link("ppbus aon", NewLink("u7000")) {
		t.Fatalf("first link rejected")
	}
	if b.Link("PPBUS_AON", NewLink("U7000")) {
		t.Errorf("duplicate link accepted")
	}
	other := NewLink("U7000")
	other.SubBoard = "bottom"
	if !b.Link("PPBUS_AON", other) {
		t.Errorf("same refdes on another sub-board rejected")
	}
	if b.Link("--", NewLink("C1")) {
		t.Errorf("degenerate net accepted")
	}

	res := b.Result("TEST")
	links := res.NetToRefs["PPBUS_AON"]
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].Kind != "U" {
		t.Errorf("kind = %q, want U", links[0].Kind)
	}
	if got := res.Meta.Int(MetaPairsCount); got != 2 {
		t.Errorf("pairs_count = %d, want 2", got)
	}
	if err := res.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidateSubset(t *testing.T) {
	res := &ParseResult{
		Nets:      NetSet{"GND": {}},
		NetToRefs: map[string][]Link{"PP3V3": {NewLink("C1")}},
		Meta:      Meta{},
	}
	if err := res.Validate(); err == nil {
		t.Fatalf("expected subset violation")
	}
}

func TestBuilderPartial(t *testing.T) {
	b := NewBuilder()
	b.AddNet("GND")
	b.AddComponent("tp1")
	b.Partial("no_pairs")
	res := b.Result("TEST")
	if res.Status() != StatusPartialSuccess {
		t.Errorf("status = %q", res.Status())
	}
	if res.Meta.String(MetaParseError) != "no_pairs" {
		t.Errorf("parse_error = %q", res.Meta.String(MetaParseError))
	}
	if !reflect.DeepEqual(res.Components(), []string{"TP1"}) {
		t.Errorf("components = %v", res.Components())
	}
}

func TestParseResultJSON(t *testing.T) {
	b := NewBuilder()
	b.Link("GND", NewLink("C2").At(1.5, 2))
	b.AddNet("PP5V")
	data, err := json.Marshal(b.Result("TEST"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back ParseResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Nets.Sorted(), []string{"GND", "PP5V"}) {
		t.Errorf("nets = %v", back.Nets.Sorted())
	}
	l := back.NetToRefs["GND"][0]
	if l.X == nil || *l.X != 1.5 || l.Y == nil || *l.Y != 2 {
		t.Errorf("coordinates lost: %+v", l)
	}
	if back.Format() != "TEST" || back.Meta.Int(MetaNetsCount) != 2 {
		t.Errorf("meta = %v", back.Meta)
	}
	if got := back.Components(); !reflect.DeepEqual(got, []string{"C2"}) {
		t.Errorf("components = %v", got)
	}
}

func TestFormatString(t *testing.T) {
	for f := Unsupported; f <= StringHeuristic; f++ {
		back, err := ParseFormat(f.String())
		if err != nil || back != f {
			t.Errorf("ParseFormat(%q) = %v, %v", f.String(), back, err)
		}
	}
	if _, err := ParseFormat("bogus"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}
