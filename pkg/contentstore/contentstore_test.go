package contentstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pinehost/pine-host/pkg/filestore"
	"github.com/pinehost/pine-host/pkg/value"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	disk, err := filestore.NewDiskStore(filepath.Join(dir, "root"), filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	t.Cleanup(func() { disk.Close() })
	return New(disk)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.EmptyBlob,
		value.EmptyList,
		value.NewBlob([]byte{1, 2, 3}),
		value.NewList(value.NewBlob([]byte("a")), value.NewList(value.NewBlob([]byte("b")))),
		value.EncodeString("hello"),
	}
	for _, v := range cases {
		data := Serialize(v)
		got, err := Deserialize(data)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch for %v", v)
		}
	}
}

func TestStoreComponentIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	v := value.NewList(value.NewBlob([]byte("payload")))

	h1, err := s.StoreComponent(v)
	if err != nil {
		t.Fatalf("StoreComponent: %v", err)
	}
	h2, err := s.StoreComponent(v)
	if err != nil {
		t.Fatalf("StoreComponent (second time): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected idempotent hash, got %s and %s", h1, h2)
	}

	loaded, err := s.LoadComponent(h1)
	if err != nil {
		t.Fatalf("LoadComponent: %v", err)
	}
	if !loaded.Equal(v) {
		t.Fatalf("loaded component does not match stored value")
	}
}

func TestLoadComponentMissingIsErrComponentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadComponent("0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	tree := SortedDir(
		TreeEntry{Name: "elm.json", Node: Leaf([]byte(`{"type":"application"}`))},
		TreeEntry{Name: "src", Node: SortedDir(
			TreeEntry{Name: "Main.elm", Node: Leaf([]byte("module Main exposing (..)"))},
		)},
	)

	v := ValueFromTree(tree)
	parsed, err := ParseAsTree(v)
	if err != nil {
		t.Fatalf("ParseAsTree: %v", err)
	}
	if !ValueFromTree(parsed).Equal(v) {
		t.Fatalf("tree round trip mismatch")
	}
}

func TestTreeHashIsStableUnderSortedConstruction(t *testing.T) {
	a := SortedDir(
		TreeEntry{Name: "b.txt", Node: Leaf([]byte("B"))},
		TreeEntry{Name: "a.txt", Node: Leaf([]byte("A"))},
	)
	b := SortedDir(
		TreeEntry{Name: "a.txt", Node: Leaf([]byte("A"))},
		TreeEntry{Name: "b.txt", Node: Leaf([]byte("B"))},
	)
	if ValueFromTree(a).HashHex() != ValueFromTree(b).HashHex() {
		t.Fatalf("expected sorted directory construction to be order-independent")
	}
}

func TestParseAsTreeRejectsMalformedEntry(t *testing.T) {
	malformed := value.NewList(value.NewList(value.NewBlob([]byte("only one element"))))
	_, err := ParseAsTree(malformed)
	if err == nil {
		t.Fatalf("expected an error for a malformed tree entry")
	}
}

func TestStoreAndLoadProvisionalReduction(t *testing.T) {
	s := newTestStore(t)
	r := ProvisionalReduction{
		ReducedCompositionHashHex: "aabbcc",
		AppConfigHashHex:          "ddeeff",
		ElmAppStateHashHex:        "112233",
	}
	if err := s.StoreProvisionalReduction(r); err != nil {
		t.Fatalf("StoreProvisionalReduction: %v", err)
	}
	got, err := s.LoadProvisionalReduction("aabbcc")
	if err != nil {
		t.Fatalf("LoadProvisionalReduction: %v", err)
	}
	if got != r {
		t.Fatalf("loaded provisional reduction mismatch: %+v != %+v", got, r)
	}
}

func TestLoadProvisionalReductionMissingIsErrComponentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadProvisionalReduction("does-not-exist")
	if !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
}
