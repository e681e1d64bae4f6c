// Copyright 2025 Pine Host Project
package contentstore

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pinehost/pine-host/pkg/value"
)

// Serialize produces the canonical on-disk form of v: a recursive,
// self-delimiting encoding reusing the "blob "/"list " framing tags from
// the value hash (spec §3), but — unlike the hash input — carrying full
// child content rather than child hashes, so a component can be fully
// reconstructed from a single stored blob.
func Serialize(v value.Value) []byte {
	if b, err := v.BlobBytes(); err == nil {
		out := []byte(fmt.Sprintf("blob %d\x00", len(b)))
		return append(out, b...)
	}
	items, _ := v.ListItems()
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("list %d\x00", len(items)))
	for _, item := range items {
		buf.Write(Serialize(item))
	}
	return buf.Bytes()
}

// Deserialize is the inverse of Serialize.
func Deserialize(data []byte) (value.Value, error) {
	v, rest, err := parseOne(data)
	if err != nil {
		return value.Value{}, err
	}
	if len(rest) != 0 {
		return value.Value{}, fmt.Errorf("contentstore: %d trailing bytes after deserialized value", len(rest))
	}
	return v, nil
}

func parseOne(data []byte) (value.Value, []byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte("blob ")):
		n, rest, err := readLengthPrefix(data, "blob ")
		if err != nil {
			return value.Value{}, nil, err
		}
		if len(rest) < n {
			return value.Value{}, nil, fmt.Errorf("contentstore: truncated blob: want %d bytes, have %d", n, len(rest))
		}
		return value.NewBlob(rest[:n]), rest[n:], nil

	case bytes.HasPrefix(data, []byte("list ")):
		count, rest, err := readLengthPrefix(data, "list ")
		if err != nil {
			return value.Value{}, nil, err
		}
		items := make([]value.Value, count)
		for i := 0; i < count; i++ {
			item, next, err := parseOne(rest)
			if err != nil {
				return value.Value{}, nil, fmt.Errorf("contentstore: list item %d: %w", i, err)
			}
			items[i] = item
			rest = next
		}
		return value.NewList(items...), rest, nil

	default:
		return value.Value{}, nil, fmt.Errorf("contentstore: unrecognized serialization tag at start of %q", truncate(data, 16))
	}
}

func readLengthPrefix(data []byte, tag string) (int, []byte, error) {
	if len(data) < len(tag) {
		return 0, nil, fmt.Errorf("contentstore: truncated %q tag", tag)
	}
	rest := data[len(tag):]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return 0, nil, fmt.Errorf("contentstore: missing NUL terminator after %q length", tag)
	}
	n, err := strconv.Atoi(string(rest[:nul]))
	if err != nil || n < 0 {
		return 0, nil, fmt.Errorf("contentstore: invalid %q length %q", tag, rest[:nul])
	}
	return n, rest[nul+1:], nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
