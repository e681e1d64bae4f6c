// Copyright 2025 Pine Host Project
package server

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pinehost/pine-host/pkg/contentstore"
)

// treeFromZip decodes a zip archive's contents into a contentstore.TreeNode
// (SPEC_FULL §4.8): the admin deploy endpoints accept a zip archive of a
// source tree, and the only file-tree shape pkg/contentstore understands is
// TreeNode, so this is the thin adapter spec.md names as an external
// concern while still needing a concrete implementation to exercise the
// admin surface end to end.
func treeFromZip(data []byte) (contentstore.TreeNode, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return contentstore.TreeNode{}, fmt.Errorf("server: not a valid zip archive: %w", err)
	}

	root := contentstore.Dir()
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		parts := strings.Split(strings.Trim(f.Name, "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return contentstore.TreeNode{}, fmt.Errorf("server: open zip entry %q: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return contentstore.TreeNode{}, fmt.Errorf("server: read zip entry %q: %w", f.Name, err)
		}

		root = insertPath(root, parts, contentstore.Leaf(data))
	}
	return root, nil
}

// insertPath inserts leaf at path under tree, creating intermediate
// directories as needed. tree must not be a leaf.
func insertPath(tree contentstore.TreeNode, path []string, leaf contentstore.TreeNode) contentstore.TreeNode {
	name := path[0]
	entries := make([]contentstore.TreeEntry, 0, len(tree.Children)+1)
	found := false

	for _, e := range tree.Children {
		if e.Name == name {
			found = true
			if len(path) == 1 {
				entries = append(entries, contentstore.TreeEntry{Name: name, Node: leaf})
			} else {
				entries = append(entries, contentstore.TreeEntry{Name: name, Node: insertPath(e.Node, path[1:], leaf)})
			}
			continue
		}
		entries = append(entries, e)
	}

	if !found {
		if len(path) == 1 {
			entries = append(entries, contentstore.TreeEntry{Name: name, Node: leaf})
		} else {
			entries = append(entries, contentstore.TreeEntry{Name: name, Node: insertPath(contentstore.Dir(), path[1:], leaf)})
		}
	}

	return contentstore.Dir(entries...)
}
