package des

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// bespokeCipher is a table-driven FIPS 46-3 implementation working on
// uint64 blocks.
type bespokeCipher struct {
	subkeys [16]uint64
}

func newBespokeCipher(key []byte) (cipher.Block, error) {
	if len(key) != BlockSize {
		return nil, fmt.Errorf("des: invalid key size %d", len(key))
	}
	c := &bespokeCipher{}
	c.subkeys = subkeys(binary.BigEndian.Uint64(key))
	return c, nil
}

func (c *bespokeCipher) BlockSize() int { return BlockSize }

func (c *bespokeCipher) Encrypt(dst, src []byte) {
	checkBlock(dst, src)
	v := binary.BigEndian.Uint64(src)
	binary.BigEndian.PutUint64(dst, cryptBlock(v, &c.subkeys, false))
}

func (c *bespokeCipher) Decrypt(dst, src []byte) {
	checkBlock(dst, src)
	v := binary.BigEndian.Uint64(src)
	binary.BigEndian.PutUint64(dst, cryptBlock(v, &c.subkeys, true))
}

func checkBlock(dst, src []byte) {
	if len(src) < BlockSize {
		panic("des: input not full block")
	}
	if len(dst) < BlockSize {
		panic("des: output not full block")
	}
}

// permute builds an output word by picking bits of in (width bits wide)
// in table order.
func permute(in uint64, width uint, table []byte) uint64 {
	var out uint64
	for _, pos := range table {
		out = out<<1 | (in>>(width-uint(pos)))&1
	}
	return out
}

func subkeys(key uint64) [16]uint64 {
	var ks [16]uint64
	k56 := permute(key, 64, permutedChoice1[:])
	c := uint32(k56>>28) & 0x0FFFFFFF
	d := uint32(k56) & 0x0FFFFFFF
	for i, s := range keyShifts {
		c = (c<<s | c>>(28-s)) & 0x0FFFFFFF
		d = (d<<s | d>>(28-s)) & 0x0FFFFFFF
		ks[i] = permute(uint64(c)<<28|uint64(d), 56, permutedChoice2[:])
	}
	return ks
}

func feistel(r uint32, k uint64) uint32 {
	x := permute(uint64(r), 32, expansion[:]) ^ k
	var out uint32
	for i := 0; i < 8; i++ {
		b := byte(x>>(42-6*uint(i))) & 0x3F
		row := (b>>4)&2 | b&1
		col := (b >> 1) & 0x0F
		out = out<<4 | uint32(sBoxes[i][row*16+col])
	}
	return uint32(permute(uint64(out), 32, roundPermutation[:]))
}

func cryptBlock(block uint64, ks *[16]uint64, decrypt bool) uint64 {
	v := permute(block, 64, initialPermutation[:])
	l, r := uint32(v>>32), uint32(v)
	for i := 0; i < 16; i++ {
		k := ks[i]
		if decrypt {
			k = ks[15-i]
		}
		l, r = r, l^feistel(r, k)
	}
	return permute(uint64(r)<<32|uint64(l), 64, finalPermutation[:])
}
