package des

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestKnownVectors(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		plaintext  string
		ciphertext string
	}{
		{"textbook", "133457799BBCDFF1", "0123456789ABCDEF", "85E813540F0AB405"},
		{"zero key", "0000000000000000", "0000000000000000", "8CA64DE9C1B123A7"},
	}

	for _, backend := range []Backend{BackendStdlib, BackendBespoke} {
		for _, tt := range tests {
			t.Run(string(backend)+"/"+tt.name, func(t *testing.T) {
				c, err := NewFactory(backend)(mustHex(t, tt.key))
				if err != nil {
					t.Fatalf("NewFactory: %v", err)
				}
				got := make([]byte, BlockSize)
				c.Encrypt(got, mustHex(t, tt.plaintext))
				if want := mustHex(t, tt.ciphertext); !bytes.Equal(got, want) {
					t.Fatalf("Encrypt = %X, want %X", got, want)
				}
				back := make([]byte, BlockSize)
				c.Decrypt(back, got)
				if !bytes.Equal(back, mustHex(t, tt.plaintext)) {
					t.Errorf("Decrypt = %X, want %s", back, tt.plaintext)
				}
			})
		}
	}
}

func TestBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(46))
	for i := 0; i < 200; i++ {
		key := make([]byte, 8)
		block := make([]byte, 8)
		rng.Read(key)
		rng.Read(block)

		std, err := NewFactory(BackendStdlib)(key)
		if err != nil {
			t.Fatalf("stdlib: %v", err)
		}
		own, err := NewFactory(BackendBespoke)(key)
		if err != nil {
			t.Fatalf("bespoke: %v", err)
		}

		a := make([]byte, 8)
		b := make([]byte, 8)
		std.Encrypt(a, block)
		own.Encrypt(b, block)
		if !bytes.Equal(a, b) {
			t.Fatalf("encrypt mismatch key=%X block=%X: stdlib %X bespoke %X", key, block, a, b)
		}
		std.Decrypt(a, block)
		own.Decrypt(b, block)
		if !bytes.Equal(a, b) {
			t.Fatalf("decrypt mismatch key=%X block=%X: stdlib %X bespoke %X", key, block, a, b)
		}
		own.Decrypt(b, a)
		if !bytes.Equal(b, block) {
			t.Fatalf("round trip failed for key=%X", key)
		}
	}
}

func TestParityOK(t *testing.T) {
	tests := []struct {
		key  uint64
		want bool
	}{
		{0xDCFC12AC00000000, true},
		{0x0000000000000000, false},
		{0xDCFC12AC00000001, false},
		{0x8000000000000000, true},
		{0x0100000000000000, true},
		{0x8000000000000003, true},
	}
	for _, tt := range tests {
		if got := ParityOK(tt.key); got != tt.want {
			t.Errorf("ParityOK(%#016x) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestECBPadsTail(t *testing.T) {
	c, err := NewKeyed(NewFactory(BackendBespoke), 0xDCFC12AC00000000)
	if err != nil {
		t.Fatalf("NewKeyed: %v", err)
	}
	plain := []byte("0123456789AB")
	enc := EncryptECB(c, plain)
	if len(enc) != 16 {
		t.Fatalf("ciphertext length = %d, want 16", len(enc))
	}
	dec := DecryptECB(c, enc)
	want := append(append([]byte(nil), plain...), 0, 0, 0, 0)
	if !bytes.Equal(dec, want) {
		t.Errorf("DecryptECB = %q, want %q", dec, want)
	}

	if _, err := NewKeyed(NewFactory(BackendStdlib), 1); err == nil {
		t.Errorf("expected parity failure")
	}
}
