package boardview

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/brd"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/bvraw"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/tvw"
)

const structuredText = "BVRAW_FORMAT_3\nPART_NAME U1\nPIN_NET PPBUS_AON\nPART_END\n"

func masked(mask byte) []byte {
	head := make([]byte, 64)
	copy(head, "XZZPCB")
	head[0x10] = mask
	if mask != 0 {
		for i := 0; i < 6; i++ {
			head[i] ^= mask
		}
	}
	return head
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		path string
		head []byte
		want Detection
	}{
		{"structured text", "board.bvr", []byte(structuredText), Detection{Format: model.StructuredText}},
		{"structured text after blank lines", "x.txt", []byte("\r\n  \nBVRAW_FORMAT_3\n"), Detection{Format: model.StructuredText}},
		{"renamed structured text", "board.pcb", []byte(structuredText), Detection{Format: model.StructuredText}},
		{"bvr2 magic", "board.bvr", []byte("BVR2\x00\x01"), Detection{Format: model.StringHeuristic, Dialect: DialectBVR2}},
		{"bvre magic", "board.bin", []byte("BVRE\x00\x01"), Detection{Format: model.StringHeuristic, Dialect: DialectBVR2}},
		{"bvr magic", "board.bvr", []byte("BVR1\x00"), Detection{Format: model.StringHeuristic, Dialect: DialectBVR}},
		{"xzz clear", "board.pcb", masked(0), Detection{Format: model.EncryptedContainer}},
		{"xzz masked", "BOARD.PCB", masked(0x5A), Detection{Format: model.EncryptedContainer}},
		{"xzz magic needs pcb extension", "board.bin", masked(0), Detection{Format: model.Unsupported}},
		{"pcb fallback", "board.pcb", []byte{0x00, 0x78, 0x9c}, Detection{Format: model.CompressedContainer}},
		{"brd scrambled", "board.brd", append(append([]byte{}, brd.Signature...), 0xAA), Detection{Format: model.BrdV1}},
		{"brd text tags", "board.brd", []byte("str_length:\r\n1 2\r\nvar_data:\r\n"), Detection{Format: model.BrdV1}},
		{"brd sections", "board.brd", []byte("BRDOUT: 4 10 10\n"), Detection{Format: model.BrdV2}},
		{"brd unknown content", "board.brd", []byte("hello"), Detection{Format: model.Unsupported}},
		{"bvr without magic", "board.bvr", []byte("garbage"), Detection{Format: model.Unsupported}},
		{"tvw", "board.tvw", []byte{0, 1, 2}, Detection{Format: model.StringHeuristic}},
		{"unknown extension", "board.zip", []byte("PK\x03\x04"), Detection{Format: model.Unsupported}},
		{"empty", "board.pcb", nil, Detection{Format: model.CompressedContainer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.path, tt.head); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDetectOnlyReadsHead(t *testing.T) {
	head := bytes.Repeat([]byte{0xEE}, HeadSize)
	a := append(append([]byte{}, head...), []byte(structuredText)...)
	b := append(append([]byte{}, head...), []byte("BRDOUT: NETS:")...)
	for _, path := range []string{"x.pcb", "x.brd", "x.tvw", "x.bvr"} {
		if da, db := Detect(path, a), Detect(path, b); da != db {
			t.Errorf("%s: detection depends on bytes past the head: %v vs %v", path, da, db)
		}
		if Detect(path, a) != Detect(path, a) {
			t.Errorf("%s: detection not deterministic", path)
		}
	}
}

func TestDetectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bvr")
	if err := os.WriteFile(path, []byte(structuredText), 0o644); err != nil {
		t.Fatal(err)
	}
	det, err := DetectFile(path)
	if err != nil {
		t.Fatalf("DetectFile: %v", err)
	}
	if det.Format != model.StructuredText {
		t.Errorf("format = %v", det.Format)
	}
	if _, err := DetectFile(filepath.Join(dir, "missing.pcb")); err == nil {
		t.Errorf("missing file detected")
	}
}

func TestParseFileStructuredText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.bvr")
	if err := os.WriteFile(path, []byte(structuredText), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if res.Format() != bvraw.FormatTag || !res.Nets.Has("PPBUS_AON") {
		t.Errorf("result = %v %v", res.Format(), res.Nets.Sorted())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		data []byte
		want error
	}{
		{"unsupported", "board.bvr", []byte("garbage"), model.ErrUnsupportedFormat},
		{"structured text without parts", "board.bvr", []byte("BVRAW_FORMAT_3\nPIN_NET GND\n"), model.ErrEmptyResult},
		{"compressed container with nothing", "board.pcb", make([]byte, 512), model.ErrNoNetsOrRefdes},
	}
	d := NewDecoder()
	d.PCB.Dense = false
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Parse(tt.path, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

type stubContainer struct{ called bool }

func (s *stubContainer) Decode([]byte) (*model.ParseResult, error) {
	s.called = true
	return nil, model.ErrMissingOrInvalidKey
}

func TestParseEncryptedUsesContainerDecoder(t *testing.T) {
	stub := &stubContainer{}
	d := &Decoder{XZZ: stub}
	_, err := d.Parse("board.pcb", masked(0x33))
	if !stub.called {
		t.Fatalf("container decoder not called")
	}
	if !errors.Is(err, model.ErrMissingOrInvalidKey) {
		t.Errorf("err = %v", err)
	}
}

// tableFile lays out a BVR2 file: magic, NUL-terminated net and refdes
// strings, their u32 offset tables and a stride-12 pin table.
func tableFile(nNets, nComps, records int) []byte {
	var buf bytes.Buffer
	buf.WriteString("BVR2")
	buf.Write(bytes.Repeat([]byte{0xFF}, 252))

	netOffs := make([]uint32, nNets)
	for i := range netOffs {
		netOffs[i] = uint32(buf.Len())
		fmt.Fprintf(&buf, "NET_%03d\x00", i)
	}
	compOffs := make([]uint32, nComps)
	for i := range compOffs {
		compOffs[i] = uint32(buf.Len())
		fmt.Fprintf(&buf, "C%d\x00", 100+i)
	}
	for buf.Len()%4 != 0 {
		buf.WriteByte(0xFF)
	}
	for _, off := range netOffs {
		binary.Write(&buf, binary.LittleEndian, off)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	for _, off := range compOffs {
		binary.Write(&buf, binary.LittleEndian, off)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	for i := 0; i < records; i++ {
		binary.Write(&buf, binary.LittleEndian, uint32(i%nComps))
		binary.Write(&buf, binary.LittleEndian, uint32((i*7)%nNets))
		binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	}
	buf.Write(bytes.Repeat([]byte{0xFF}, buf.Len()/2))
	return buf.Bytes()
}

func TestParseBinaryTable(t *testing.T) {
	res, err := Parse("board.bvr", tableFile(30, 30, 60))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Format() != DialectBVR2 {
		t.Errorf("format = %q", res.Format())
	}
	if len(res.Nets) != 30 || res.Meta.Int(model.MetaComponentsCount) != 30 {
		t.Errorf("counts: %d nets, meta %v", len(res.Nets), res.Meta)
	}
	found := false
	for _, l := range res.NetToRefs["NET_000"] {
		if l.RefDes == "C100" && l.Kind == "C" {
			found = true
		}
	}
	if !found {
		t.Errorf("NET_000 links = %+v", res.NetToRefs["NET_000"])
	}
	if res.Meta.String("pin_table_layout") == "" {
		t.Errorf("pin table layout missing from meta")
	}
}

func TestParseBinaryTableFallsBackToStrings(t *testing.T) {
	data := []byte("BVR\x00PP3V3_S0\x00C12\x00")
	res, err := Parse("board.bvr", data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Format() != DialectBVR {
		t.Errorf("format = %q", res.Format())
	}
	if res.Meta.String(MetaTableError) == "" {
		t.Errorf("table error not recorded: %v", res.Meta)
	}
	if res.Status() != model.StatusPartialSuccess || res.Meta.String(model.MetaParseError) != tvw.ReasonNoMapping {
		t.Errorf("status %q error %q", res.Status(), res.Meta.String(model.MetaParseError))
	}
	if links := res.NetToRefs["PP3V3_S0"]; len(links) != 1 || links[0].RefDes != "C12" {
		t.Errorf("links = %+v", links)
	}
}
