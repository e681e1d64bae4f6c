package value

import (
	"math/big"
	"testing"
)

func TestEqualityImpliesHashEquality(t *testing.T) {
	a := NewList(NewBlob([]byte("x")), NewBlob([]byte("y")))
	b := NewList(NewBlob([]byte("x")), NewBlob([]byte("y")))

	if !a.Equal(b) {
		t.Fatalf("expected a and b to be structurally equal")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("equal values must hash identically")
	}
}

func TestHashStableAcrossCalls(t *testing.T) {
	v := NewList(NewBlob([]byte{1, 2, 3}), EmptyList)
	h1 := v.HashHex()
	h2 := v.HashHex()
	if h1 != h2 {
		t.Fatalf("hash is not stable: %s != %s", h1, h2)
	}
}

func TestCanonicalBooleans(t *testing.T) {
	if !True.BlobBytesEqual([]byte{0x04}) {
		t.Fatalf("True must be the single byte 0x04")
	}
	if !False.BlobBytesEqual([]byte{0x02}) {
		t.Fatalf("False must be the single byte 0x02")
	}
}

func TestIsTrueAsymmetry(t *testing.T) {
	cases := []Value{
		False,
		EmptyList,
		NewBlob([]byte{0x00}),
		NewBlob([]byte{0x04, 0x00}),
	}
	for _, c := range cases {
		if c.IsTrue() {
			t.Fatalf("value %v must not be considered true", c)
		}
	}
	if !True.IsTrue() {
		t.Fatalf("canonical True must be considered true")
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "x", "hello, world", "unicode: é中"} {
		encoded := EncodeString(s)
		decoded, err := DecodeString(encoded)
		if err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		if decoded != s {
			t.Fatalf("round trip mismatch: %q != %q", decoded, s)
		}
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 127, -127, 1 << 40, -(1 << 40)}
	for _, n := range cases {
		enc := EncodeInt64(n)
		dec, err := DecodeInt(enc)
		if err != nil {
			t.Fatalf("decode %d: %v", n, err)
		}
		if dec.Cmp(big.NewInt(n)) != 0 {
			t.Fatalf("round trip mismatch: %s != %d", dec, n)
		}
	}
}

func TestEncodeIntZeroIsCanonical(t *testing.T) {
	z := EncodeInt64(0)
	b, err := z.BlobBytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 1 || b[0] != signPositive {
		t.Fatalf("expected single canonical positive-sign byte, got %v", b)
	}
}

// BlobBytesEqual is a tiny test helper living alongside the test file instead
// of the package itself since no production code needs it.
func (v Value) BlobBytesEqual(b []byte) bool {
	vb, err := v.BlobBytes()
	if err != nil {
		return false
	}
	if len(vb) != len(b) {
		return false
	}
	for i := range vb {
		if vb[i] != b[i] {
			return false
		}
	}
	return true
}
