// Copyright 2025 Pine Host Project
//
// Package contentstore implements the content-addressed value store (spec
// §4.4): storing and loading Values by hash, parsing/encoding file trees,
// and persisting provisional-reduction snapshots. It is a thin layer over
// filestore.Store — it owns no file-handling logic of its own, matching the
// teacher's pattern of a narrow domain-specific wrapper (ledger.LedgerStore)
// around a generic KV abstraction.
package contentstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pinehost/pine-host/pkg/filestore"
	"github.com/pinehost/pine-host/pkg/value"
)

// ErrComponentNotFound is returned by LoadComponent when no value is stored
// under the requested hash.
var ErrComponentNotFound = errors.New("contentstore: component not found")

// Store is the content-addressed value store described in spec §4.4.
type Store struct {
	files filestore.Store
}

// New wraps files as a content-addressed Store.
func New(files filestore.Store) *Store {
	return &Store{files: files}
}

// StoreComponent computes v's hash, persists its canonical serialization if
// no value is already stored under that hash, and returns the hash in hex.
// Idempotent: storing the same value twice is a no-op the second time.
func (s *Store) StoreComponent(v value.Value) (string, error) {
	hashHex := v.HashHex()
	key := filestore.ValueKey(hashHex)

	exists, err := s.files.Exists(key)
	if err != nil {
		return "", fmt.Errorf("contentstore: check existence of %s: %w", hashHex, err)
	}
	if exists {
		return hashHex, nil
	}

	if err := s.files.WriteBlob(key, Serialize(v)); err != nil {
		return "", fmt.Errorf("contentstore: persist component %s: %w", hashHex, err)
	}
	return hashHex, nil
}

// LoadComponent materializes the value stored under hashHex, or
// ErrComponentNotFound if absent.
func (s *Store) LoadComponent(hashHex string) (value.Value, error) {
	data, err := s.files.ReadBlob(filestore.ValueKey(hashHex))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return value.Value{}, ErrComponentNotFound
		}
		return value.Value{}, fmt.Errorf("contentstore: load component %s: %w", hashHex, err)
	}
	v, err := Deserialize(data)
	if err != nil {
		return value.Value{}, fmt.Errorf("contentstore: corrupt stored component %s: %w", hashHex, err)
	}
	return v, nil
}

// ParseAsTree parses a stored component by hash as a file tree.
func (s *Store) ParseAsTree(hashHex string) (TreeNode, error) {
	v, err := s.LoadComponent(hashHex)
	if err != nil {
		return TreeNode{}, err
	}
	return ParseAsTree(v)
}

// StoreTree encodes t canonically and stores it as a component, returning
// its hash.
func (s *Store) StoreTree(t TreeNode) (string, error) {
	return s.StoreComponent(ValueFromTree(t))
}

// ProvisionalReduction is a restore-accelerating snapshot (spec §3): the
// hash of the composition-log record it summarizes, the deployed app's
// config tree, and its serialized state, each referenced by hash into the
// content store.
type ProvisionalReduction struct {
	ReducedCompositionHashHex string `json:"reducedCompositionHashHex"`
	AppConfigHashHex          string `json:"appConfigHashHex"`
	ElmAppStateHashHex        string `json:"elmAppStateHashHex"`
}

// StoreProvisionalReduction writes r as the snapshot for the composition
// hash it summarizes.
func (s *Store) StoreProvisionalReduction(r ProvisionalReduction) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("contentstore: marshal provisional reduction: %w", err)
	}
	key := filestore.ProvisionalReductionKey(r.ReducedCompositionHashHex)
	if err := s.files.WriteBlob(key, data); err != nil {
		return fmt.Errorf("contentstore: store provisional reduction for %s: %w", r.ReducedCompositionHashHex, err)
	}
	return nil
}

// LoadProvisionalReduction returns the snapshot keyed by compositionHashHex,
// or ErrComponentNotFound if none has been recorded.
func (s *Store) LoadProvisionalReduction(compositionHashHex string) (ProvisionalReduction, error) {
	data, err := s.files.ReadBlob(filestore.ProvisionalReductionKey(compositionHashHex))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return ProvisionalReduction{}, ErrComponentNotFound
		}
		return ProvisionalReduction{}, fmt.Errorf("contentstore: load provisional reduction for %s: %w", compositionHashHex, err)
	}
	var r ProvisionalReduction
	if err := json.Unmarshal(data, &r); err != nil {
		return ProvisionalReduction{}, fmt.Errorf("contentstore: corrupt provisional reduction for %s: %w", compositionHashHex, err)
	}
	return r, nil
}
