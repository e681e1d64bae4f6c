package kernel

import (
	"testing"

	"github.com/pinehost/pine-host/pkg/value"
)

func mustApply(t *testing.T, name string, arg value.Value) value.Value {
	t.Helper()
	v, err := Apply(name, arg)
	if err != nil {
		t.Fatalf("Apply(%s): %v", name, err)
	}
	return v
}

func TestSkipTwo(t *testing.T) {
	list := value.NewList(
		value.NewBlob([]byte("A")),
		value.NewBlob([]byte("B")),
		value.NewBlob([]byte("C")),
		value.NewBlob([]byte("D")),
		value.NewBlob([]byte("E")),
	)
	arg := value.NewList(value.EncodeInt64(2), list)
	got := mustApply(t, "skip", arg)

	want := value.NewList(
		value.NewBlob([]byte("C")),
		value.NewBlob([]byte("D")),
		value.NewBlob([]byte("E")),
	)
	if !got.Equal(want) {
		t.Fatalf("skip mismatch")
	}
}

func TestSkipPastLengthClampsToEmpty(t *testing.T) {
	list := value.NewList(value.NewBlob([]byte("A")), value.NewBlob([]byte("B")))
	arg := value.NewList(value.EncodeInt64(50), list)
	got := mustApply(t, "skip", arg)
	if !got.Equal(value.EmptyList) {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestConcatEmptyList(t *testing.T) {
	got := mustApply(t, "concat", value.EmptyList)
	if !got.Equal(value.EmptyList) {
		t.Fatalf("concat of empty list must be empty list")
	}
}

func TestConcatMixedBlobAndListIsSentinel(t *testing.T) {
	arg := value.NewList(value.NewBlob([]byte("x")), value.NewList())
	got := mustApply(t, "concat", arg)
	if !got.Equal(value.EmptyList) {
		t.Fatalf("mixed concat input must produce the empty-list sentinel")
	}
}

func TestArithmeticTypeMismatchIsSentinelNotError(t *testing.T) {
	arg := value.NewList(value.NewBlob([]byte("not an int")), value.EncodeInt64(1))
	v, err := Apply("add_int", arg)
	if err != nil {
		t.Fatalf("kernel type mismatches must not be errors: %v", err)
	}
	if !v.Equal(value.EmptyList) {
		t.Fatalf("expected empty-list sentinel, got %v", v)
	}
}

func TestUnknownKernelFunctionIsError(t *testing.T) {
	_, err := Apply("no_such_function", value.EmptyList)
	if err == nil {
		t.Fatalf("expected an error for an unknown kernel function")
	}
}

func TestAddIntReducesLeftToRight(t *testing.T) {
	arg := value.NewList(value.EncodeInt64(3), value.EncodeInt64(4), value.EncodeInt64(5))
	got := mustApply(t, "add_int", arg)
	want := value.EncodeInt64(12)
	if !got.Equal(want) {
		t.Fatalf("add_int mismatch")
	}
}

func TestIsSortedAscendingInt(t *testing.T) {
	sorted := value.NewList(value.EncodeInt64(1), value.EncodeInt64(2), value.EncodeInt64(2))
	if !mustApply(t, "is_sorted_ascending_int", sorted).IsTrue() {
		t.Fatalf("expected sorted sequence to report true")
	}

	unsorted := value.NewList(value.EncodeInt64(2), value.EncodeInt64(1))
	if mustApply(t, "is_sorted_ascending_int", unsorted).IsTrue() {
		t.Fatalf("expected unsorted sequence to report false")
	}
}
