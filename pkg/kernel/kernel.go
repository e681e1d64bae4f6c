// Copyright 2025 Pine Host Project
//
// Package kernel implements the fixed set of primitive operations PineVM
// expressions can invoke via KernelApplication (spec §4.1).
//
// Kernel functions are total: malformed input never panics or returns an
// error from Apply itself. A type-mismatched argument produces the
// kernel-failure sentinel (the empty list) — this asymmetry is deliberate
// (spec §7) and deployed applications are expected to test for it. The only
// error Apply returns is for an unrecognized function name, which the
// evaluator surfaces as a Result::Err rather than a soft failure.

package kernel

import (
	"fmt"
	"math/big"

	"github.com/pinehost/pine-host/pkg/value"
)

// ErrUnknownFunction is returned by Apply when functionName does not name a
// kernel function.
type ErrUnknownFunction struct {
	Name string
}

func (e *ErrUnknownFunction) Error() string {
	return fmt.Sprintf("unknown kernel function: %s", e.Name)
}

type fn func(arg value.Value) value.Value

var registry = map[string]fn{
	"equal":                  equal,
	"logical_not":            logicalNot,
	"logical_and":            logicalAnd,
	"logical_or":             logicalOr,
	"length":                 length,
	"skip":                   skip,
	"take":                   take,
	"reverse":                reverse,
	"concat":                 concat,
	"list_head":              listHead,
	"neg_int":                negInt,
	"add_int":                addInt,
	"sub_int":                subInt,
	"mul_int":                mulInt,
	"div_int":                divInt,
	"is_sorted_ascending_int": isSortedAscendingInt,
}

// Apply looks up functionName and applies it to arg. The only failure mode
// is an unrecognized name; everything else — including type mismatches the
// individual kernel function cannot make sense of — returns the empty list
// per the soft-failure contract described in spec §4.1 and §7.
func Apply(functionName string, arg value.Value) (value.Value, error) {
	f, ok := registry[functionName]
	if !ok {
		return value.EmptyList, &ErrUnknownFunction{Name: functionName}
	}
	return f(arg), nil
}

func boolValue(b bool) value.Value {
	if b {
		return value.True
	}
	return value.False
}

func equal(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil || len(items) == 0 {
		return value.EmptyList
	}
	for _, item := range items[1:] {
		if !items[0].Equal(item) {
			return value.False
		}
	}
	return value.True
}

func logicalNot(arg value.Value) value.Value {
	if arg.IsTrue() {
		return value.False
	}
	return value.True
}

func logicalAnd(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil {
		return value.EmptyList
	}
	for _, item := range items {
		if !item.IsTrue() {
			return value.False
		}
	}
	return value.True
}

func logicalOr(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil {
		return value.EmptyList
	}
	for _, item := range items {
		if item.IsTrue() {
			return value.True
		}
	}
	return value.False
}

func length(arg value.Value) value.Value {
	if b, err := arg.BlobBytes(); err == nil {
		return value.EncodeInt64(int64(len(b)))
	}
	items, err := arg.ListItems()
	if err != nil {
		return value.EmptyList
	}
	return value.EncodeInt64(int64(len(items)))
}

// clampCount converts a count blob to a non-negative int clamped to [0, max].
func clampCount(countValue value.Value, max int) (int, bool) {
	n, err := value.DecodeInt(countValue)
	if err != nil {
		return 0, false
	}
	if n.Sign() < 0 {
		return 0, true
	}
	if !n.IsInt64() || n.Int64() > int64(max) {
		return max, true
	}
	return int(n.Int64()), true
}

func skip(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil || len(items) != 2 {
		return value.EmptyList
	}
	target := items[1]

	if b, berr := target.BlobBytes(); berr == nil {
		n, ok := clampCount(items[0], len(b))
		if !ok {
			return value.EmptyList
		}
		return value.NewBlob(b[n:])
	}
	targetItems, lerr := target.ListItems()
	if lerr != nil {
		return value.EmptyList
	}
	n, ok := clampCount(items[0], len(targetItems))
	if !ok {
		return value.EmptyList
	}
	return value.NewList(targetItems[n:]...)
}

func take(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil || len(items) != 2 {
		return value.EmptyList
	}
	target := items[1]

	if b, berr := target.BlobBytes(); berr == nil {
		n, ok := clampCount(items[0], len(b))
		if !ok {
			return value.EmptyList
		}
		return value.NewBlob(b[:n])
	}
	targetItems, lerr := target.ListItems()
	if lerr != nil {
		return value.EmptyList
	}
	n, ok := clampCount(items[0], len(targetItems))
	if !ok {
		return value.EmptyList
	}
	return value.NewList(targetItems[:n]...)
}

func reverse(arg value.Value) value.Value {
	if b, err := arg.BlobBytes(); err == nil {
		out := make([]byte, len(b))
		for i, c := range b {
			out[len(b)-1-i] = c
		}
		return value.NewBlob(out)
	}
	items, err := arg.ListItems()
	if err != nil {
		return value.EmptyList
	}
	out := make([]value.Value, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return value.NewList(out...)
}

func concat(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil {
		return value.EmptyList
	}
	if len(items) == 0 {
		return value.EmptyList
	}

	if _, err := items[0].BlobBytes(); err == nil {
		var out []byte
		for _, item := range items {
			b, err := item.BlobBytes()
			if err != nil {
				return value.EmptyList
			}
			out = append(out, b...)
		}
		return value.NewBlob(out)
	}

	var out []value.Value
	for _, item := range items {
		children, err := item.ListItems()
		if err != nil {
			return value.EmptyList
		}
		out = append(out, children...)
	}
	return value.NewList(out...)
}

func listHead(arg value.Value) value.Value {
	items, err := arg.ListItems()
	if err != nil || len(items) == 0 {
		return value.EmptyList
	}
	return items[0]
}

// intArgs extracts either a [a, b] pair or a left-to-right reducible list of
// integer blobs from arg, per the arithmetic primitive contract in spec §4.1.
func intArgs(arg value.Value) ([]*big.Int, bool) {
	items, err := arg.ListItems()
	if err != nil {
		return nil, false
	}
	out := make([]*big.Int, len(items))
	for i, item := range items {
		n, err := value.DecodeInt(item)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func reduceInt(arg value.Value, op func(a, b *big.Int) *big.Int) value.Value {
	ns, ok := intArgs(arg)
	if !ok || len(ns) == 0 {
		return value.EmptyList
	}
	acc := ns[0]
	for _, n := range ns[1:] {
		acc = op(acc, n)
	}
	return value.EncodeInt(acc)
}

func negInt(arg value.Value) value.Value {
	n, err := value.DecodeInt(arg)
	if err != nil {
		return value.EmptyList
	}
	return value.EncodeInt(new(big.Int).Neg(n))
}

func addInt(arg value.Value) value.Value {
	return reduceInt(arg, func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) })
}

func subInt(arg value.Value) value.Value {
	return reduceInt(arg, func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) })
}

func mulInt(arg value.Value) value.Value {
	return reduceInt(arg, func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) })
}

func divInt(arg value.Value) value.Value {
	ns, ok := intArgs(arg)
	if !ok || len(ns) == 0 {
		return value.EmptyList
	}
	acc := ns[0]
	for _, n := range ns[1:] {
		if n.Sign() == 0 {
			return value.EmptyList
		}
		acc = new(big.Int).Quo(acc, n)
	}
	return value.EncodeInt(acc)
}

func isSortedAscendingInt(arg value.Value) value.Value {
	ns, ok := intArgs(arg)
	if !ok {
		return value.EmptyList
	}
	for i := 1; i < len(ns); i++ {
		if ns[i-1].Cmp(ns[i]) > 0 {
			return value.False
		}
	}
	return value.True
}
