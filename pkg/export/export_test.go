package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chewxy/sexp"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

func fixture() *model.ParseResult {
	return &model.ParseResult{
		Nets: model.NetSet{"PPBUS_AON": {}, "GND": {}, "NC": {}},
		NetToRefs: map[string][]model.Link{
			"PPBUS_AON": {model.NewLink("U7000"), model.NewLink("C5")},
			"GND": {
				{RefDes: "C5", Kind: "C", SubBoard: "top"},
				{RefDes: "C5", Kind: "C", SubBoard: "bottom"},
			},
		},
		Meta: model.Meta{model.MetaFormat: "BRD_BRD2"},
	}
}

func TestKiCad(t *testing.T) {
	out := KiCad("820-01955", fixture())

	for _, want := range []string{
		"(export (version D)",
		"(source 820-01955)",
		"(comp (ref C5))",
		"(comp (ref U7000))",
		"(net (code 1) (name GND)\n      (node (ref C5)))",
		"(net (code 2) (name NC))",
		"(net (code 3) (name PPBUS_AON)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("KiCad output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "(node (ref C5))"); n != 2 {
		t.Errorf("C5 nodes = %d, want 2 (one per net)", n)
	}

	exprs, err := sexp.ParseString(out)
	if err != nil {
		t.Fatalf("output is not a valid s-expression: %v", err)
	}
	if len(exprs) != 1 || exprs[0].IsLeaf() {
		t.Fatalf("want one list expression, got %d", len(exprs))
	}
	if exprs[0].LeafCount() == 0 {
		t.Error("export expression has no leaves")
	}
}

func TestKiCadQuotesAtoms(t *testing.T) {
	res := &model.ParseResult{
		Nets:      model.NetSet{"VCC(3V3)": {}},
		NetToRefs: map[string][]model.Link{},
		Meta:      model.Meta{},
	}
	out := KiCad("820-01955 rev A", res)
	for _, want := range []string{`(source "820-01955 rev A")`, `(name "VCC(3V3)")`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSON(t *testing.T) {
	data, err := JSON("820-01955", fixture())
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var doc struct {
		Nets      []string                `json:"nets"`
		NetToRefs map[string][]model.Link `json:"net_to_refdes"`
		Meta      map[string]any          `json:"meta"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(doc.Nets) != 3 || doc.Nets[0] != "GND" {
		t.Errorf("nets = %v", doc.Nets)
	}
	if doc.Meta["board_id"] != "820-01955" {
		t.Errorf("meta = %v", doc.Meta)
	}
	if len(doc.NetToRefs["PPBUS_AON"]) != 2 {
		t.Errorf("links = %v", doc.NetToRefs)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if _, err := Write("gerber", "x", fixture()); err == nil {
		t.Error("expected an error for an unknown format")
	}
	for _, f := range Formats {
		if _, err := Write(f, "x", fixture()); err != nil {
			t.Errorf("Write(%s): %v", f, err)
		}
	}
}
