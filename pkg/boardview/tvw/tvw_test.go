package tvw

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

func TestLooksLikeNet(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{"PP3V3_S0", true},
		{"GND", true},
		{"I2C_SCL", true},
		{"VDDIO_1V8", true},
		{"PP123456_X", true},
		{"AB_123456", false},
		{"C1234_FOO", false},
		{"LED_RED", false},
		{"GPU_TOP", false},
		{"i2c_scl", false},
		{"NET", false},
	}
	for _, tt := range tests {
		if got := LooksLikeNet(tt.tok); got != tt.want {
			t.Errorf("LooksLikeNet(%q) = %v, want %v", tt.tok, got, tt.want)
		}
	}
}

func TestLooksLikeRefDes(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{"U12", true},
		{"pr5", true},
		{"TPU3", true},
		{"CN1A", true},
		{"U12_A", false},
		{"MARK1", false},
		{"U", false},
	}
	for _, tt := range tests {
		if got := LooksLikeRefDes(tt.tok); got != tt.want {
			t.Errorf("LooksLikeRefDes(%q) = %v, want %v", tt.tok, got, tt.want)
		}
	}
}

func TestStrings(t *testing.T) {
	data := []byte("ab\x00GND\x00\x01PP1V8_S2\xffVBUS")
	if got, want := Strings(data, 3), []string{"GND", "PP1V8_S2", "VBUS"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Strings = %v, want %v", got, want)
	}
	if got, want := NullStrings(data, 3), []string{"GND"}; !reflect.DeepEqual(got, want) {
		t.Errorf("NullStrings = %v, want %v", got, want)
	}
}

func pairedBlob(n int, netFirst bool) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x02})
	for i := 0; i < n; i++ {
		net := fmt.Sprintf("PP%dV_S%d", i+1, i)
		ref := fmt.Sprintf("C%d", 100+i)
		if netFirst {
			fmt.Fprintf(&buf, "%s\x00%s\x00----\x00", net, ref)
		} else {
			fmt.Fprintf(&buf, "%s\x00%s\x00----\x00", ref, net)
		}
	}
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		pairs    int
		wantPart bool
	}{
		{"net then ref", pairedBlob(12, true), 12, false},
		{"ref then net", pairedBlob(12, false), 12, false},
		{"too few", pairedBlob(3, true), 3, true},
		{"nothing", []byte{0xde, 0xad, 0xbe, 0xef}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.data)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if res.PairsCount() != tt.pairs {
				t.Errorf("pairs = %d, want %d", res.PairsCount(), tt.pairs)
			}
			if partial := res.Status() == model.StatusPartialSuccess; partial != tt.wantPart {
				t.Errorf("status = %q", res.Status())
			}
			if tt.wantPart && res.Meta.String(model.MetaParseError) != ReasonNoMapping {
				t.Errorf("parse_error = %q", res.Meta.String(model.MetaParseError))
			}
			if res.Format() != FormatTag {
				t.Errorf("format = %q", res.Format())
			}
			if err := res.Validate(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestParseTagged(t *testing.T) {
	res := ParseTagged(pairedBlob(1, true), "BVR2")
	if res.Format() != "BVR2" {
		t.Errorf("format = %q", res.Format())
	}
	if got := res.NetToRefs["PP1V_S0"]; len(got) != 1 || got[0].RefDes != "C100" || got[0].Kind != "C" {
		t.Errorf("links = %+v", res.NetToRefs)
	}
}
