package guardrail

import (
	"reflect"
	"strings"
	"testing"
)

const (
	longNet   = "PP3V3_S0_SENSE_FILTERED"
	twinNetA  = "PP3V3_S0_SENSE_FILTERED_PROTECTED_A"
	twinNetB  = "PP3V3_S0_SENSE_FILTERED_PROTECTED_B"
	twinProbe = "PP3V3_S0_SENSE_FILTERED_PROTECTED_C"
)

func TestDefaultFuzzyThreshold(t *testing.T) {
	// Empirical value; revisit against a larger set of real boards.
	if DefaultFuzzyThreshold != 0.97 {
		t.Errorf("DefaultFuzzyThreshold = %v, want 0.97", DefaultFuzzyThreshold)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abcd", "bcde", 0.75},
		{"GND", "GND", 1},
		{"", "", 1},
		{"ABC", "XYZ", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNetTokens(t *testing.T) {
	got := NetTokens("probe PP3V3_S0, CHECK_PPBUS_AON and net_12 plus GND")
	want := []string{"PP3V3_S0", "net_12"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NetTokens = %v, want %v", got, want)
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		in                  string
		prefix, net, suffix string
	}{
		{"CHECK_PP3V3_S0", "CHECK_", "PP3V3_S0", ""},
		{"verify_PPBUS_AON_R2G", "VERIFY_", "PPBUS_AON", "_R2G"},
		{"TEST_VBUS_DIODE", "TEST_", "VBUS", "_DIODE"},
		{"PP3V3_S0", "", "", ""},
	}
	for _, tt := range tests {
		p, n, s := SplitKey(tt.in)
		if p != tt.prefix || n != tt.net || s != tt.suffix {
			t.Errorf("SplitKey(%q) = (%q, %q, %q), want (%q, %q, %q)", tt.in, p, n, s, tt.prefix, tt.net, tt.suffix)
		}
	}
}

func TestEnforceCleanInput(t *testing.T) {
	e := New("J316", []string{"PP3V3_S0", "PPBUS_AON", "GND"})
	text := "Measure PP3V3_S0 then run CHECK_PPBUS_AON against GND"
	items := []Item{{Key: "CHECK_PP3V3_S0", Net: "PP3V3_S0"}}

	out, got, report := e.Enforce(text, items)
	if out != text {
		t.Errorf("text = %q, want unchanged", out)
	}
	if !report.Clean() || len(report.InvalidNets) != 0 {
		t.Errorf("report = %+v, want clean", report)
	}
	if got[0].Key != "CHECK_PP3V3_S0" || got[0].Net != "PP3V3_S0" {
		t.Errorf("item = %+v", got[0])
	}
	if got[0].Meta[MetaNetValid] != true || got[0].Meta[MetaNeedsConfirmation] != false {
		t.Errorf("item flags = %v", got[0].Meta)
	}
	if items[0].Meta != nil {
		t.Error("input item was mutated")
	}
}

func TestEnforceText(t *testing.T) {
	tests := []struct {
		name     string
		nets     []string
		text     string
		want     string
		fixes    []Fix
		invalid  []string
		withNote bool
	}{
		{
			name:  "rail rename",
			nets:  []string{"PPBUS_AON", "PP3V3_S0"},
			text:  "Probe PPBUS_G3H now",
			want:  "Probe PPBUS_AON now",
			fixes: []Fix{{From: "PPBUS_G3H", To: "PPBUS_AON", Reason: ReasonRailRename}},
		},
		{
			name:  "fuzzy fix",
			nets:  []string{longNet, "GND"},
			text:  "Probe PP3V3_S0_SENSE_FILTRED first",
			want:  "Probe " + longNet + " first",
			fixes: []Fix{{From: "PP3V3_S0_SENSE_FILTRED", To: longNet, Reason: ReasonFuzzy}},
		},
		{
			name:     "tie is never resolved",
			nets:     []string{twinNetA, twinNetB, "GND"},
			text:     "Probe " + twinProbe + " first",
			want:     "Probe " + UnknownNet + " first",
			invalid:  []string{twinProbe},
			withNote: true,
		},
		{
			name:     "unknown net",
			nets:     []string{"PP3V3_S0"},
			text:     "Probe PP5V_FOO",
			want:     "Probe " + UnknownNet,
			invalid:  []string{"PP5V_FOO"},
			withNote: true,
		},
		{
			name: "plain words ignored",
			nets: []string{"PP3V3_S0"},
			text: "see MY_NODE",
			want: "see MY_NODE",
		},
		{
			name:  "measurement key",
			nets:  []string{"PPBUS_AON"},
			text:  "Run CHECK_PPBUS_G3H_R2G",
			want:  "Run CHECK_PPBUS_AON_R2G",
			fixes: []Fix{{From: "PPBUS_G3H", To: "PPBUS_AON", Reason: ReasonRailRename}},
		},
		{
			name:     "unknown measurement key",
			nets:     []string{"PPBUS_AON"},
			text:     "Run CHECK_PP5V_FOO_DIODE",
			want:     "Run CHECK_" + UnknownNet + "_DIODE",
			invalid:  []string{"PP5V_FOO"},
			withNote: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, report := New("J316", tt.nets).Enforce(tt.text, nil)
			body, note, hasNote := strings.Cut(out, "\n\n")
			if body != tt.want {
				t.Errorf("text = %q, want %q", body, tt.want)
			}
			if hasNote != tt.withNote {
				t.Errorf("note present = %v, want %v (%q)", hasNote, tt.withNote, note)
			}
			if hasNote && !strings.HasPrefix(note, "Net(s) not found in loaded J316 netlist: "+strings.Join(tt.invalid, ", ")+".") {
				t.Errorf("note = %q", note)
			}
			if tt.fixes == nil {
				tt.fixes = []Fix{}
			}
			if !reflect.DeepEqual(report.AutoFixes, tt.fixes) {
				t.Errorf("fixes = %+v, want %+v", report.AutoFixes, tt.fixes)
			}
			if tt.invalid == nil {
				tt.invalid = []string{}
			}
			if !reflect.DeepEqual(report.InvalidNets, tt.invalid) {
				t.Errorf("invalid = %v, want %v", report.InvalidNets, tt.invalid)
			}
		})
	}
}

func TestEnforceTieSuggestions(t *testing.T) {
	_, _, report := New("J316", []string{twinNetA, twinNetB, "GND"}).Enforce(twinProbe, nil)
	want := []string{twinNetB, twinNetA}
	if got := report.Suggestions[twinProbe]; !reflect.DeepEqual(got, want) {
		t.Errorf("suggestions = %v, want %v", got, want)
	}
}

func TestEnforceItems(t *testing.T) {
	e := New("J316", []string{"PP3V3_S0", "PPBUS_AON"})
	items := []Item{
		{Key: "VERIFY_PP3V3_S0"},
		{Key: "CHECK_PP5V_FOO_DIODE"},
		{Key: "CHECK_VBUS", Node: "PORT:USB-C"},
		{Key: "ppbus_aon_rail", Meta: map[string]any{"net": "ppbus_aon"}},
	}
	_, got, report := e.Enforce("", items)

	if got[0].Key != "CHECK_PP3V3_S0" || got[0].Meta[MetaKeyNormalizedFrom] != "VERIFY_PP3V3_S0" {
		t.Errorf("normalized item = %+v", got[0])
	}

	bad := got[1]
	if bad.Key != "CHECK_"+UnknownNet+"_DIODE" || bad.Net != UnknownNet {
		t.Errorf("invalid item = %+v", bad)
	}
	if bad.Meta[MetaNetOriginal] != "PP5V_FOO" || bad.Meta[MetaNeedsConfirmation] != true {
		t.Errorf("invalid item meta = %v", bad.Meta)
	}

	if got[2].Key != "CHECK_VBUS" || got[2].Meta[MetaNetValid] != true {
		t.Errorf("port item = %+v", got[2])
	}

	if got[3].Key != "CHECK_PPBUS_AON" || got[3].Net != "ppbus_aon" {
		t.Errorf("meta net item = %+v", got[3])
	}

	if want := []string{"CHECK_PP5V_FOO_DIODE"}; !reflect.DeepEqual(report.InvalidPlanItems, want) {
		t.Errorf("invalid plan items = %v, want %v", report.InvalidPlanItems, want)
	}
}

func TestEnforceEmptyNetSet(t *testing.T) {
	items := []Item{{Key: "CHECK_PP5V_FOO"}}
	out, got, report := New("J316", nil).Enforce("Probe PP5V_FOO", items)
	if out != "Probe PP5V_FOO" {
		t.Errorf("text = %q", out)
	}
	if !reflect.DeepEqual(got, items) {
		t.Errorf("items = %+v", got)
	}
	if !report.Clean() {
		t.Errorf("report = %+v", report)
	}
}

func TestSuggest(t *testing.T) {
	e := New("J316", []string{"PP3V3_S0", "PP3V3_S5", "PP5V_S0", "GND"})
	if got, want := e.Suggest("pp3v3_s3", 2), []string{"PP3V3_S5", "PP3V3_S0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest = %v, want %v", got, want)
	}
	if got := New("J316", nil).Suggest("PP3V3_S0", 5); got != nil {
		t.Errorf("Suggest on empty set = %v", got)
	}
}

func TestEnforceRefDes(t *testing.T) {
	known := map[string]struct{}{"U1": {}, "C5": {}, "TP12": {}}
	out, report := EnforceRefDes("check u1 and C7 near TP12, also R99", known)
	if want := "check U1 and " + UnknownRefDes + " near TP12, also " + UnknownRefDes; out != want {
		t.Errorf("text = %q, want %q", out, want)
	}
	if want := []string{"C7", "R99"}; !reflect.DeepEqual(report.Invalid, want) {
		t.Errorf("invalid = %v, want %v", report.Invalid, want)
	}
	if report.ReplacedCount != 2 {
		t.Errorf("replaced = %d", report.ReplacedCount)
	}

	if out, report := EnforceRefDes("C7", nil); out != "C7" || report.ReplacedCount != 0 {
		t.Errorf("empty known set changed text: %q %+v", out, report)
	}
}

func TestSuggestRefDes(t *testing.T) {
	got := SuggestRefDes("u100", []string{"U1000", "U7000", "C100"}, 3)
	if len(got) == 0 || got[0] != "U1000" {
		t.Errorf("SuggestRefDes = %v", got)
	}
}
