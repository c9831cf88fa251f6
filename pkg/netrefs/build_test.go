package netrefs

import (
	"reflect"
	"testing"
)

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[s] = struct{}{}
	}
	return m
}

func TestBuildFromTexts(t *testing.T) {
	nets := set("PP3V3_S0", "PPBUS_AON", "PP1V8_S2", "PP5V_S0")
	refs := set("C7110", "R7000", "U7000", "TP12", "C1", "C2", "C3", "C4", "C5", "C6")

	texts := []string{
		"Check PP3V3_S0 at C7110\nsecond line\nR7000 is the pull-up",
		"pp3v3_s0 shorted? lift c7110",
		"PPBUS_AON PP1V8_S2 PP5V_S0 PP3V3_S0 all near U7000",
		"PPBUS_AON bypass: C1 C2 C3 C4 C5 C6",
		"",
	}
	got, meta := BuildFromTexts(texts, nets, refs)

	want := map[string][]string{
		"PP3V3_S0": {"C7110", "R7000"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildFromTexts = %v, want %v", got, want)
	}
	if meta.NetCount != 1 || meta.PairsCount != 2 || meta.RefDesCount != len(refs) {
		t.Errorf("meta = %+v", meta)
	}
}

func TestBuildFromTextsOrdering(t *testing.T) {
	nets := set("PP3V3_S0")
	refs := set("C1", "R1", "U1")
	// U1 and R1 each score 1 from neighbouring lines; C1 scores 3 on the
	// same line.
	texts := []string{"U1\nPP3V3_S0 C1\nR1"}
	got, _ := BuildFromTexts(texts, nets, refs)
	if want := []string{"C1", "R1", "U1"}; !reflect.DeepEqual(got["PP3V3_S0"], want) {
		t.Errorf("order = %v, want %v", got["PP3V3_S0"], want)
	}
}

func TestBuildFromTextsLineBreaks(t *testing.T) {
	nets := set("PP3V3_S0")
	refs := set("C1", "R1", "U1", "Q1")
	// Each separator starts a new line, so only C1 shares a line with the
	// net and the others score as neighbours.
	for _, sep := range []string{"\f", "\v", "\x1c", "\u0085", "\u2028", "\u2029"} {
		texts := []string{"PP3V3_S0 C1" + sep + "R1" + sep + "U1" + sep + sep + "Q1"}
		got, _ := BuildFromTexts(texts, nets, refs)
		if want := []string{"C1", "R1", "U1"}; !reflect.DeepEqual(got["PP3V3_S0"], want) {
			t.Errorf("sep %q: refs = %v, want %v", sep, got["PP3V3_S0"], want)
		}
	}
}
