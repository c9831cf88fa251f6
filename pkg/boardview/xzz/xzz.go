// Package xzz decodes the XZZPCB encrypted boardview container: an
// XOR-masked header, a net-name table and a tagged main block whose part
// records are DES-encrypted.
package xzz

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/des"
)

// FormatTag is stored under meta.format.
const FormatTag = "XZZPCB"

// Scale converts stored coordinates to mils.
const Scale = 10000

const (
	maskOffset    = 0x10
	mainPtrOffset = 0x20
	netPtrOffset  = 0x28
	offsetBase    = 0x20
)

var (
	// Magic is the unmasked container signature.
	Magic = []byte("XZZPCB")
	// Marker ends the XOR-masked region.
	Marker = []byte("v6v6555v6v6")
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Decoder holds the key sources and cipher backend for one decoding run.
type Decoder struct {
	// Factory builds the DES cipher. Nil selects the standard library.
	Factory des.Factory
	// Getenv reads key overrides. Nil selects os.Getenv.
	Getenv func(string) string
	// Key is a key configured by the caller, tried after the environment.
	Key string
	// ConfPaths are obv.conf files scanned for XZZPCBKey.
	ConfPaths []string
	// Master is the last-resort key.
	Master uint64
	Logger *slog.Logger
}

// NewDecoder returns a decoder with the default key chain.
func NewDecoder() *Decoder {
	return &Decoder{
		Factory:   des.NewFactory(des.BackendStdlib),
		ConfPaths: DefaultConfPaths(),
		Master:    MasterKey,
	}
}

// Parse decodes data with the default decoder.
func Parse(data []byte) (*model.ParseResult, error) {
	return NewDecoder().Decode(data)
}

// Verify reports whether buf carries the container magic, either in clear
// or XOR-masked with the byte at offset 0x10.
func Verify(buf []byte) bool {
	if len(buf) < len(Magic) {
		return false
	}
	if bytes.Equal(buf[:len(Magic)], Magic) {
		return true
	}
	if len(buf) <= maskOffset || buf[maskOffset] == 0 {
		return false
	}
	mask := buf[maskOffset]
	for i, c := range Magic {
		if buf[i]^mask != c {
			return false
		}
	}
	return true
}

// Demask returns a copy of buf with every byte before Marker (or the whole
// buffer when the marker is absent) XORed with the mask byte. Buffers with a
// zero mask are returned unchanged.
func Demask(buf []byte) []byte {
	if len(buf) <= maskOffset || buf[maskOffset] == 0 {
		return buf
	}
	mask := buf[maskOffset]
	end := bytes.Index(buf, Marker)
	if end < 0 {
		end = len(buf)
	}
	out := append([]byte(nil), buf...)
	for i := 0; i < end; i++ {
		out[i] ^= mask
	}
	return out
}

// Decode parses one container. A header that does not verify, or a key chain
// with no parity-valid key, fails with model.ErrMissingOrInvalidKey. Zero-size
// main or net blocks fail with model.ErrInvalidOffsets.
func (d *Decoder) Decode(data []byte) (*model.ParseResult, error) {
	if !Verify(data) {
		return nil, model.ErrMissingOrInvalidKey
	}
	key, source, err := d.ResolveKey()
	if err != nil {
		return nil, err
	}
	factory := d.Factory
	if factory == nil {
		factory = des.NewFactory(des.BackendStdlib)
	}
	block, err := des.NewKeyed(factory, key)
	if err != nil {
		return nil, err
	}

	buf := Demask(data)
	mainStart := int(u32(buf, mainPtrOffset)) + offsetBase
	netStart := int(u32(buf, netPtrOffset)) + offsetBase
	mainSize := int(u32(buf, mainStart))
	netSize := int(u32(buf, netStart))
	if mainSize == 0 || netSize == 0 {
		return nil, model.ErrInvalidOffsets
	}

	nets := parseNetBlock(span(buf, netStart+4, netStart+4+netSize))
	bd := walkMain(buf, mainStart+4, mainStart+4+mainSize, nets, func(p []byte) []byte {
		return des.DecryptECB(block, p)
	})
	bd.translate()

	d.logger().Debug("xzz decoded", "key_source", source, "nets", len(nets),
		"parts", len(bd.parts), "pins", len(bd.pins), "testpads", len(bd.testpads))
	return bd.result(nets, source), nil
}

// u32 reads a little-endian uint32, returning 0 past the end of buf.
func u32(buf []byte, pos int) uint32 {
	if pos < 0 || pos+4 > len(buf) {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[pos:])
}

// span slices buf with both bounds clamped into range.
func span(buf []byte, lo, hi int) []byte {
	lo = max(0, min(lo, len(buf)))
	hi = max(lo, min(hi, len(buf)))
	return buf[lo:hi]
}
