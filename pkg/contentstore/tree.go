// Copyright 2025 Pine Host Project
package contentstore

import (
	"fmt"
	"sort"

	"github.com/pinehost/pine-host/pkg/value"
)

// TreeNode is either a leaf (a file's raw bytes) or a directory (an ordered
// sequence of named children), per the file-tree encoding of spec §4.4: a
// value encoding a tree is a list of [nameString, child] pairs where child
// is either a blob or another such list.
type TreeNode struct {
	IsLeaf   bool
	Blob     []byte
	Children []TreeEntry
}

// TreeEntry pairs a directory entry's name with its node.
type TreeEntry struct {
	Name string
	Node TreeNode
}

// Leaf builds a file-tree leaf node.
func Leaf(data []byte) TreeNode {
	cp := make([]byte, len(data))
	copy(cp, data)
	return TreeNode{IsLeaf: true, Blob: cp}
}

// Dir builds a directory tree node from entries in the given order. Use
// SortedDir when constructing a tree from an external source (e.g. a
// filesystem walk) whose entries must be canonicalized (spec §4.4: "a file
// tree's hash is a function of its sorted entries").
func Dir(entries ...TreeEntry) TreeNode {
	cp := make([]TreeEntry, len(entries))
	copy(cp, entries)
	return TreeNode{IsLeaf: false, Children: cp}
}

// SortedDir builds a directory node with entries sorted by name, giving a
// canonical encoding regardless of the order they were discovered in.
func SortedDir(entries ...TreeEntry) TreeNode {
	cp := make([]TreeEntry, len(entries))
	copy(cp, entries)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })
	return TreeNode{IsLeaf: false, Children: cp}
}

// ValueFromTree encodes a TreeNode as a Value, preserving child order
// exactly — the inverse of ParseAsTree.
func ValueFromTree(t TreeNode) value.Value {
	if t.IsLeaf {
		return value.NewBlob(t.Blob)
	}
	items := make([]value.Value, len(t.Children))
	for i, entry := range t.Children {
		items[i] = value.NewList(value.EncodeString(entry.Name), ValueFromTree(entry.Node))
	}
	return value.NewList(items...)
}

// ParseAsTree parses v as a file tree. A value is a valid tree encoding if
// it is a blob (a leaf) or a list of two-element [nameString, child] pairs
// (a directory), recursively. Malformed input — a pair of the wrong arity,
// a non-string name, or a name slot that is itself a non-string list —
// produces a descriptive error rather than a panic.
func ParseAsTree(v value.Value) (TreeNode, error) {
	if b, err := v.BlobBytes(); err == nil {
		return Leaf(b), nil
	}

	items, err := v.ListItems()
	if err != nil {
		return TreeNode{}, fmt.Errorf("parseAsTree: value is neither a blob nor a list")
	}

	entries := make([]TreeEntry, len(items))
	for i, item := range items {
		pair, err := item.ListItems()
		if err != nil || len(pair) != 2 {
			return TreeNode{}, fmt.Errorf("parseAsTree: entry %d is not a [name, child] pair", i)
		}
		name, err := value.DecodeString(pair[0])
		if err != nil {
			return TreeNode{}, fmt.Errorf("parseAsTree: entry %d name is not a string: %w", i, err)
		}
		child, err := ParseAsTree(pair[1])
		if err != nil {
			return TreeNode{}, fmt.Errorf("parseAsTree: entry %d (%q): %w", i, name, err)
		}
		entries[i] = TreeEntry{Name: name, Node: child}
	}
	return Dir(entries...), nil
}
