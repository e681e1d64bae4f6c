// Copyright 2025 Pine Host Project
//
// Package value implements the PineVM value model: an immutable,
// content-addressable tree of blobs and lists.

package value

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Kind discriminates the two Value variants.
type Kind int

const (
	// KindBlob is a value carrying a byte sequence.
	KindBlob Kind = iota
	// KindList is a value carrying an ordered sequence of child values.
	KindList
)

// Value is the universal PineVM data type: a Blob or a List. It is immutable
// once constructed and safe to share across goroutines without copying.
type Value struct {
	kind  Kind
	blob  []byte
	items []Value
}

// Sentinel errors for hash-ref resolution.
var (
	ErrNotBlob = errors.New("value: not a blob")
	ErrNotList = errors.New("value: not a list")
)

// NewBlob builds a Blob value. The byte slice is copied defensively so the
// caller may reuse or mutate the slice they passed in.
func NewBlob(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBlob, blob: cp}
}

// NewList builds a List value from already-immutable child values.
func NewList(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// EmptyList is the canonical empty list value, used pervasively as the
// kernel-function failure sentinel (spec §4.1, §7).
var EmptyList = NewList()

// EmptyBlob is the canonical zero-length blob value.
var EmptyBlob = NewBlob(nil)

// Canonical boolean values (spec §6). True and False are ordinary blobs —
// there is no dedicated boolean variant in the value model.
var (
	True  = NewBlob([]byte{0x04})
	False = NewBlob([]byte{0x02})
)

// IsBlob reports whether the value is a Blob.
func (v Value) IsBlob() bool { return v.kind == KindBlob }

// IsList reports whether the value is a List.
func (v Value) IsList() bool { return v.kind == KindList }

// BlobBytes returns the underlying bytes of a Blob value. The caller must not
// mutate the returned slice.
func (v Value) BlobBytes() ([]byte, error) {
	if v.kind != KindBlob {
		return nil, ErrNotBlob
	}
	return v.blob, nil
}

// ListItems returns the children of a List value. The caller must not mutate
// the returned slice.
func (v Value) ListItems() ([]Value, error) {
	if v.kind != KindList {
		return nil, ErrNotList
	}
	return v.items, nil
}

// IsTrue reports whether v is byte-identical to the canonical True value.
// This is the asymmetric test spec §4.2 requires for Conditional: everything
// that is not exactly True — including False — takes the false branch.
func (v Value) IsTrue() bool {
	return v.Equal(True)
}

// Equal reports structural equality. Two values are equal iff their hashes
// are equal (spec §3), which for this representation coincides with a
// straightforward recursive structural comparison.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindBlob {
		if len(v.blob) != len(other.blob) {
			return false
		}
		for i := range v.blob {
			if v.blob[i] != other.blob[i] {
				return false
			}
		}
		return true
	}
	if len(v.items) != len(other.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(other.items[i]) {
			return false
		}
	}
	return true
}

// Hash computes the canonical SHA-256 content hash described in spec §6:
//
//	Blob: "blob " ‖ decimalLength ‖ 0x00 ‖ bytes
//	List: "list " ‖ decimalLength ‖ 0x00 ‖ concatenation of child hashes (32 bytes each)
//
// Child hashes are computed recursively, so a List's hash is stable under
// structural sharing of its children.
func (v Value) Hash() [32]byte {
	if v.kind == KindBlob {
		prefix := "blob " + strconv.Itoa(len(v.blob)) + "\x00"
		h := sha256.New()
		h.Write([]byte(prefix))
		h.Write(v.blob)
		var out [32]byte
		copy(out[:], h.Sum(nil))
		return out
	}

	prefix := "list " + strconv.Itoa(len(v.items)) + "\x00"
	h := sha256.New()
	h.Write([]byte(prefix))
	for _, item := range v.items {
		childHash := item.Hash()
		h.Write(childHash[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashHex returns the lowercase hex form of Hash, the durable identifier used
// throughout the file store (spec §6).
func (v Value) HashHex() string {
	h := v.Hash()
	return hex.EncodeToString(h[:])
}

// EncodeString converts a Go string into its PineVM representation: a List of
// per-codepoint Blob values, each a 4-byte big-endian UTF-32 code point
// (spec §4.3).
func EncodeString(s string) Value {
	runes := []rune(s)
	items := make([]Value, len(runes))
	for i, r := range runes {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(r))
		items[i] = NewBlob(b)
	}
	return NewList(items...)
}

// DecodeString is the inverse of EncodeString. It fails if v is not a List of
// 4-byte Blobs.
func DecodeString(v Value) (string, error) {
	items, err := v.ListItems()
	if err != nil {
		return "", fmt.Errorf("decode string: %w", err)
	}
	runes := make([]rune, len(items))
	for i, item := range items {
		b, err := item.BlobBytes()
		if err != nil {
			return "", fmt.Errorf("decode string: codepoint %d: %w", i, err)
		}
		if len(b) != 4 {
			return "", fmt.Errorf("decode string: codepoint %d: expected 4 bytes, got %d", i, len(b))
		}
		runes[i] = rune(binary.BigEndian.Uint32(b))
	}
	return string(runes), nil
}

// EncodeBytesAsBlobList encodes a byte slice as a list of single-byte blobs —
// the shape kernel functions such as concat expect when they receive a "list
// of blobs" rather than a single packed Blob.
func EncodeBytesAsBlobList(b []byte) Value {
	items := make([]Value, len(b))
	for i, c := range b {
		items[i] = NewBlob([]byte{c})
	}
	return NewList(items...)
}
