// Package des provides the 64-bit DES block cipher used by the encrypted
// boardview container.
//
// Two backends satisfy crypto/cipher.Block: the standard library's vetted
// implementation and a self-contained table-driven one. Both produce
// identical output for the same key and block. Callers pick a backend once
// through a Factory instead of probing for one at each call site.
package des

import (
	"crypto/cipher"
	stddes "crypto/des"
	"encoding/binary"
	"fmt"
)

// BlockSize is the DES block size in bytes.
const BlockSize = 8

// Backend names a cipher implementation.
type Backend string

const (
	BackendStdlib  Backend = "stdlib"
	BackendBespoke Backend = "bespoke"
)

// Factory builds a block cipher from an 8-byte key.
type Factory func(key []byte) (cipher.Block, error)

// NewFactory returns the factory for backend. Unknown names select the
// vetted standard-library backend.
func NewFactory(backend Backend) Factory {
	if backend == BackendBespoke {
		return newBespokeCipher
	}
	return stddes.NewCipher
}

// NewCipher builds a cipher on the default backend.
func NewCipher(key []byte) (cipher.Block, error) {
	return NewFactory(BackendStdlib)(key)
}

// KeyBytes encodes a 64-bit key big-endian, the byte order the container
// stores its key material in.
func KeyBytes(key uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, key)
	return b
}

// keyParity is the per-byte expected value of the inverted parity bit,
// indexed from the least significant byte.
var keyParity = [8]uint64{1, 1, 1, 1, 1, 1, 1, 0}

// ParityOK applies the container's key parity rule: the seven low-order
// bytes must have even parity and the most significant byte odd parity.
func ParityOK(key uint64) bool {
	for i := 0; i < 8; i++ {
		tmp := (key >> (uint(i) * 8)) & 0xFF
		tmp ^= tmp >> 4
		tmp ^= tmp >> 2
		tmp ^= tmp >> 1
		if (^tmp)&1 != keyParity[i] {
			return false
		}
	}
	return true
}

// DecryptECB decrypts data block by block. A short tail is zero-padded to a
// full block, so the output length is len(data) rounded up to BlockSize.
func DecryptECB(b cipher.Block, data []byte) []byte {
	return ecb(data, b.Decrypt)
}

// EncryptECB is the inverse of DecryptECB.
func EncryptECB(b cipher.Block, data []byte) []byte {
	return ecb(data, b.Encrypt)
}

func ecb(data []byte, fn func(dst, src []byte)) []byte {
	n := (len(data) + BlockSize - 1) / BlockSize * BlockSize
	out := make([]byte, n)
	var block [BlockSize]byte
	for i := 0; i < len(data); i += BlockSize {
		block = [BlockSize]byte{}
		copy(block[:], data[i:])
		fn(out[i:i+BlockSize], block[:])
	}
	return out
}

// NewKeyed validates a 64-bit key and builds a cipher with factory.
func NewKeyed(factory Factory, key uint64) (cipher.Block, error) {
	if !ParityOK(key) {
		return nil, fmt.Errorf("des: key %#016x fails parity check", key)
	}
	return factory(KeyBytes(key))
}
