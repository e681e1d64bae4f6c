// Copyright 2025 Pine Host Project
//
// Package filestore provides the Store abstraction used by the content
// store and composition log: a flat key/blob namespace with an existence
// index, backed either by the local filesystem (DiskStore) or by an
// in-memory overlay used for the "attempt continue" two-phase commit
// protocol (spec §4.6).
//
// The KV-interface-over-concrete-backend split mirrors the teacher
// repository's ledger.KV abstraction (pkg/kvdb/adapter.go): callers program
// against Store, never against *DiskStore directly, so the composition log
// and process supervisor can run their test phase against an overlay with
// no durable side effects.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
)

// ErrNotFound is returned by ReadBlob when key has no value.
var ErrNotFound = errors.New("filestore: key not found")

// Store is a flat namespace of keys to byte blobs, plus prefix listing.
// Keys use "/" as a path separator regardless of backend.
type Store interface {
	ReadBlob(key string) ([]byte, error)
	WriteBlob(key string, data []byte) error
	Exists(key string) (bool, error)
	ListKeys(prefix string) ([]string, error)
	DeleteBlob(key string) error
}

// Layout constants for the three key namespaces a DiskStore hosts (spec
// §4.4/§4.5): content-addressed values, the composition log's per-position
// segment files, and provisional-reduction snapshots.
const (
	ValuesPrefix              = "values"
	CompositionLogPrefix      = "composition-log"
	ProvisionalReductionPrefix = "provisional-reduction"
)

// ValueKey returns the relative key under which a value's canonical
// serialization is stored, sharded by the first byte of its hex hash so no
// single directory accumulates an unbounded number of entries.
func ValueKey(hashHex string) string {
	shard := hashHex
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.ToSlash(filepath.Join(ValuesPrefix, shard, hashHex))
}

// CompositionLogKey returns the relative key for the record stored at the
// given log position.
func CompositionLogKey(position int64) string {
	return filepath.ToSlash(filepath.Join(CompositionLogPrefix, fmt.Sprintf("%020d", position)))
}

// ProvisionalReductionKey returns the relative key for a provisional
// reduction snapshot keyed by the composition hash it summarizes.
func ProvisionalReductionKey(compositionHashHex string) string {
	return filepath.ToSlash(filepath.Join(ProvisionalReductionPrefix, compositionHashHex))
}

// DiskStore persists blobs under a root directory on the local filesystem.
// Writes are atomic (write to a temp file, then rename). An accelerator
// index — a goleveldb instance via cometbft-db, mirroring the teacher's
// dbm.DB-backed KV adapter — tracks key existence so storeComponent's
// "persist if absent" check (spec §4.4) does not require a filesystem stat
// on every call.
type DiskStore struct {
	root string

	mu    sync.Mutex
	index dbm.DB
}

// NewDiskStore opens (creating if necessary) a DiskStore rooted at root,
// with its accelerator index persisted at indexDir.
func NewDiskStore(root, indexDir string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root %s: %w", root, err)
	}
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create index dir %s: %w", indexDir, err)
	}
	db, err := dbm.NewGoLevelDB("accelerator-index", indexDir)
	if err != nil {
		return nil, fmt.Errorf("filestore: open accelerator index: %w", err)
	}
	return &DiskStore{root: root, index: db}, nil
}

// Close releases the accelerator index's underlying file handles.
func (s *DiskStore) Close() error {
	return s.index.Close()
}

func (s *DiskStore) fullPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *DiskStore) indexKey(key string) []byte {
	return []byte("k:" + key)
}

// ReadBlob returns the bytes stored at key, or ErrNotFound.
func (s *DiskStore) ReadBlob(key string) ([]byte, error) {
	data, err := os.ReadFile(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("filestore: read %s: %w", key, err)
	}
	return data, nil
}

// WriteBlob atomically persists data at key and records its presence in the
// accelerator index.
func (s *DiskStore) WriteBlob(key string, data []byte) error {
	full := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write temp file for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: rename into place for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.SetSync(s.indexKey(key), []byte{1}); err != nil {
		return fmt.Errorf("filestore: update accelerator index for %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key has a value, consulting the accelerator index
// first and falling back to a filesystem stat if the index has no opinion
// (e.g. a file written by a previous process version before the index
// existed).
func (s *DiskStore) Exists(key string) (bool, error) {
	s.mu.Lock()
	v, err := s.index.Get(s.indexKey(key))
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("filestore: query accelerator index for %s: %w", key, err)
	}
	if v != nil {
		return true, nil
	}

	if _, err := os.Stat(s.fullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("filestore: stat %s: %w", key, err)
	}
	return true, nil
}

// ListKeys returns every key under prefix, lexically sorted.
func (s *DiskStore) ListKeys(prefix string) ([]string, error) {
	root := s.fullPath(prefix)
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(filepath.Base(rel), ".tmp-") {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: list %s: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteBlob removes the blob at key, used only by truncateProcessHistory
// (spec §5 resource policy: the content store never removes a value except
// through that operation).
func (s *DiskStore) DeleteBlob(key string) error {
	if err := os.Remove(s.fullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: delete %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Delete(s.indexKey(key)); err != nil {
		return fmt.Errorf("filestore: remove %s from accelerator index: %w", key, err)
	}
	return nil
}
