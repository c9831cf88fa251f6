package bintable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"testing"
	"time"
)

var (
	testNetRe = regexp.MustCompile(`(?i)^(?:PP[A-Z0-9_.]+|[A-Z][A-Z0-9_.]*_[A-Z0-9_.]+)$`)
	testRefRe = regexp.MustCompile(`(?i)^(?:TP|FB|C|R|L|D|Q|U|F|X|J|P)\d{1,5}$`)
)

// tableFixture lays out a synthetic board: a 0xFF header, NUL-terminated
// net and refdes strings, two u32 offset tables, a stride-12 comp_net pin
// table and a 0xFF tail long enough to keep the pin table inside the
// searched prefix.
func tableFixture(t *testing.T, nNets, nComps, records int) ([]byte, int) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xFF}, 256))

	netOffs := make([]uint32, nNets)
	for i := range netOffs {
		netOffs[i] = uint32(buf.Len())
		fmt.Fprintf(&buf, "NET_%03d\x00", i)
	}
	compOffs := make([]uint32, nComps)
	for i := range compOffs {
		compOffs[i] = uint32(buf.Len())
		fmt.Fprintf(&buf, "U%d\x00", 100+i)
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

	pinStart := buf.Len()
	for i := 0; i < records; i++ {
		binary.Write(&buf, binary.LittleEndian, uint32(i%nComps))
		binary.Write(&buf, binary.LittleEndian, uint32((i*7)%nNets))
		binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	}
	buf.Write(bytes.Repeat([]byte{0xFF}, buf.Len()/2))
	return buf.Bytes(), pinStart
}

func TestReconstruct(t *testing.T) {
	data, pinStart := tableFixture(t, 60, 60, 80)

	res, err := Reconstruct(data, Options{
		NetPattern: testNetRe,
		RefPattern: testRefRe,
		MinEntries: 50,
	})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(res.Nets) != 60 || len(res.Comps) != 60 {
		t.Fatalf("tables = %d nets, %d comps; want 60/60", len(res.Nets), len(res.Comps))
	}
	if res.Nets[5] != "NET_005" || res.Comps[5] != "U105" {
		t.Errorf("table order lost: %s %s", res.Nets[5], res.Comps[5])
	}
	if !res.Pins.Found() {
		t.Fatalf("pin table not found")
	}
	if res.Pins.Offset != pinStart || res.Pins.Records != 80 {
		t.Errorf("pin table = %+v, want offset %d with 80 records", res.Pins, pinStart)
	}
	// Both orders index validly here; the first order tried must win.
	if res.Pins.Layout() != "comp_net:12" {
		t.Errorf("layout = %q, want comp_net:12", res.Pins.Layout())
	}
	if len(res.Pairs) != 80 {
		t.Fatalf("pairs = %d, want 80", len(res.Pairs))
	}
	if p := res.Pairs[3]; p.Comp != "U103" || p.Net != "NET_021" {
		t.Errorf("pair[3] = %+v", p)
	}
	if m := res.Meta(); m["pin_table_layout"] != "comp_net:12" {
		t.Errorf("meta = %v", m)
	}
}

func TestReconstructDeterministic(t *testing.T) {
	data, _ := tableFixture(t, 60, 60, 80)
	opts := Options{NetPattern: testNetRe, RefPattern: testRefRe, MinEntries: 50}
	first, err := Reconstruct(data, opts)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Reconstruct(data, opts)
		if err != nil {
			t.Fatalf("Reconstruct: %v", err)
		}
		if again.Pins != first.Pins {
			t.Fatalf("run %d: %+v != %+v", i, again.Pins, first.Pins)
		}
	}
}

func TestReconstructShortTableRejected(t *testing.T) {
	data, _ := tableFixture(t, 60, 60, DefaultMinPinRecords-1)
	res, err := Reconstruct(data, Options{NetPattern: testNetRe, RefPattern: testRefRe, MinEntries: 50})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if res.Pins.Found() {
		t.Errorf("a %d-record table must be rejected, got %+v", DefaultMinPinRecords-1, res.Pins)
	}
}

func TestFindPinTableZeroPadding(t *testing.T) {
	// Zero padding indexes validly for any table size.
	const size = 4 << 20
	data := make([]byte, size)
	start := time.Now()
	got := FindPinTable(data, 100, 100, size, DefaultMinPinRecords)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("FindPinTable over %d zero bytes took %v", size, elapsed)
	}
	if got.Offset != 0 || got.Records < size/Strides[len(Strides)-1] {
		t.Errorf("FindPinTable = %+v, want a run from offset 0", got)
	}
}

func TestReconstructErrors(t *testing.T) {
	data, _ := tableFixture(t, 30, 30, 80)
	if _, err := Reconstruct(data, Options{NetPattern: testNetRe, RefPattern: testRefRe, MinEntries: 50}); err != ErrInsufficientTable {
		t.Errorf("err = %v, want %v", err, ErrInsufficientTable)
	}
	if _, err := Reconstruct([]byte{0xFF, 0xFE}, Options{NetPattern: testNetRe, RefPattern: testRefRe}); err == nil {
		t.Errorf("expected error on empty input")
	}
}

func TestMinPinRecordsValue(t *testing.T) {
	// Empirical threshold; revisit against a larger set of real files.
	if DefaultMinPinRecords != 50 {
		t.Errorf("DefaultMinPinRecords = %d, want 50", DefaultMinPinRecords)
	}
}

func TestLengthPrefixedIndex(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 4, 0, 0, 0, 'G', 'N', 'D', '1', 0}
	idx := NewIndex(data, ExtractStrings(data, 2, 80, nil))
	if idx[8] != "GND1" || idx[4] != "GND1" {
		t.Errorf("index = %v", idx)
	}
}
