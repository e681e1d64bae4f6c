package value

import (
	"errors"
	"math/big"
)

// Sign bytes for the variable-length signed integer encoding (spec §4.1).
const (
	signPositive byte = 0x04
	signNegative byte = 0x02
)

// ErrInvalidInteger is returned when a blob does not hold a well-formed
// PineVM integer encoding.
var ErrInvalidInteger = errors.New("value: invalid integer encoding")

// EncodeInt converts a big.Int into its canonical PineVM integer blob: one
// sign byte followed by the big-endian magnitude, with zero always encoded as
// the single canonical positive-sign, zero-length-magnitude form.
func EncodeInt(n *big.Int) Value {
	if n.Sign() == 0 {
		return NewBlob([]byte{signPositive})
	}

	mag := new(big.Int).Abs(n).Bytes()
	out := make([]byte, 0, len(mag)+1)
	if n.Sign() < 0 {
		out = append(out, signNegative)
	} else {
		out = append(out, signPositive)
	}
	out = append(out, mag...)
	return NewBlob(out)
}

// EncodeInt64 is a convenience wrapper around EncodeInt for machine integers.
func EncodeInt64(n int64) Value {
	return EncodeInt(big.NewInt(n))
}

// DecodeInt parses a value as a PineVM integer blob. It fails on anything
// that is not a Blob, an empty Blob, or a blob whose first byte is not a
// recognized sign byte.
func DecodeInt(v Value) (*big.Int, error) {
	b, err := v.BlobBytes()
	if err != nil {
		return nil, ErrInvalidInteger
	}
	if len(b) == 0 {
		return nil, ErrInvalidInteger
	}

	sign := b[0]
	mag := b[1:]
	n := new(big.Int).SetBytes(mag)

	switch sign {
	case signPositive:
		return n, nil
	case signNegative:
		if n.Sign() == 0 {
			// Negative zero is not a canonical encoding, but parses to 0.
			return n, nil
		}
		return n.Neg(n), nil
	default:
		return nil, ErrInvalidInteger
	}
}

// IsIntegerBlob reports whether v decodes as a well-formed PineVM integer,
// without allocating the big.Int on failure paths that only need a boolean.
func IsIntegerBlob(v Value) bool {
	_, err := DecodeInt(v)
	return err == nil
}
