package pcbzip

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

var errStreamTooLarge = errors.New("pcbzip: stream exceeds output limit")

// xz reports bytes after a complete single stream with this message; the
// error value itself is unexported.
const xzTrailingData = "xz: unexpected data after stream"

// Decompress inflates the stream at data[off:] with method. At most maxIn
// input bytes are visible to the codec and a stream that would produce more
// than maxOut bytes is rejected. It returns the output and the number of
// input bytes consumed. Only streams that decode to a clean end succeed;
// data after the end of the stream is ignored.
func Decompress(data []byte, off int, method Method, maxOut, maxIn int) ([]byte, int, error) {
	if off < 0 || off >= len(data) {
		return nil, 0, io.ErrUnexpectedEOF
	}
	src := bytes.NewReader(data[off:min(len(data), off+maxIn)])
	size := src.Len()

	var (
		r   io.Reader
		err error
	)
	switch method {
	case MethodZlib:
		var zr io.ReadCloser
		if zr, err = zlib.NewReader(src); err == nil {
			defer zr.Close()
			r = zr
		}
	case MethodDeflate:
		fr := flate.NewReader(src)
		defer fr.Close()
		r = fr
	case MethodGzip:
		var gr *gzip.Reader
		if gr, err = gzip.NewReader(src); err == nil {
			gr.Multistream(false)
			defer gr.Close()
			r = gr
		}
	case MethodXZ:
		r, err = xz.ReaderConfig{SingleStream: true}.NewReader(src)
	case MethodZstd:
		var zd *zstd.Decoder
		zd, err = zstd.NewReader(src, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
		if err == nil {
			defer zd.Close()
			r = zd
		}
	case MethodLZ4:
		r = lz4.NewReader(src)
	default:
		return nil, 0, errors.New("pcbzip: unknown method " + string(method))
	}
	if err != nil {
		return nil, 0, err
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(maxOut)+1))
	if err != nil && !cleanTrailer(method, err, out) {
		return nil, 0, err
	}
	if len(out) > maxOut {
		return nil, 0, errStreamTooLarge
	}
	return out, size - src.Len(), nil
}

// cleanTrailer reports whether err only complains about bytes that follow a
// fully decoded stream.
func cleanTrailer(method Method, err error, out []byte) bool {
	if len(out) == 0 {
		return false
	}
	switch method {
	case MethodXZ:
		return err.Error() == xzTrailingData
	case MethodZstd:
		return errors.Is(err, zstd.ErrMagicMismatch)
	}
	return false
}
