package compositionlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pinehost/pine-host/pkg/filestore"
)

// SentinelParentHashHex is the parent hash of the log's root record (spec
// §3: "the root's parent is the sentinel hash of empty").
var SentinelParentHashHex = hex.EncodeToString(sha256.Sum256(nil)[:])

const headKey = "composition-log/HEAD"

// ErrEmptyLog is returned by operations that require at least one record
// when the log has none.
var ErrEmptyLog = errors.New("compositionlog: log is empty")

// Record is a CompositionLogRecord (spec §3): a parent-linked event. JSON
// field names match spec §6's durable wire format literally:
// {"parentHashBase16": "…", "compositionEvent": {…}}.
type Record struct {
	ParentHashHex string `json:"parentHashBase16"`
	Event         Event  `json:"compositionEvent"`
}

// head is the log's append cursor, tracking the most recently written
// record's position and hash so appendRecord does not need to rescan the
// store on every call.
type head struct {
	Position int64  `json:"position"`
	HashHex  string `json:"hashHex"`
}

// Log is the append-only composition log described in spec §4.5.
type Log struct {
	files filestore.Store
}

// New wraps files as a composition log.
func New(files filestore.Store) *Log {
	return &Log{files: files}
}

func (l *Log) readHead() (*head, error) {
	data, err := l.files.ReadBlob(headKey)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("compositionlog: read head: %w", err)
	}
	var h head
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("compositionlog: corrupt head pointer: %w", err)
	}
	return &h, nil
}

func (l *Log) writeHead(h head) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("compositionlog: marshal head: %w", err)
	}
	if err := l.files.WriteBlob(headKey, data); err != nil {
		return fmt.Errorf("compositionlog: write head: %w", err)
	}
	return nil
}

// canonicalize produces the deterministic byte form a record hashes and
// persists as. encoding/json's struct marshaling is already deterministic
// (fixed declaration order), which is sufficient for canonical hashing.
func canonicalize(r Record) ([]byte, error) {
	return json.Marshal(r)
}

func hashRecordBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HeadHashHex returns the hash of the most recently appended record, or ""
// if the log is empty.
func (l *Log) HeadHashHex() (string, error) {
	h, err := l.readHead()
	if err != nil {
		return "", err
	}
	if h == nil {
		return "", nil
	}
	return h.HashHex, nil
}

// AppendRecord reads the current head, constructs {parent: head, event},
// canonical-serializes it, writes it, and returns the new head hash (spec
// §4.5).
func (l *Log) AppendRecord(event Event) (string, error) {
	h, err := l.readHead()
	if err != nil {
		return "", err
	}

	parentHashHex := SentinelParentHashHex
	nextPosition := int64(0)
	if h != nil {
		parentHashHex = h.HashHex
		nextPosition = h.Position + 1
	}

	record := Record{ParentHashHex: parentHashHex, Event: event}
	data, err := canonicalize(record)
	if err != nil {
		return "", err
	}
	recordHashHex := hashRecordBytes(data)

	if err := l.files.WriteBlob(filestore.CompositionLogKey(nextPosition), data); err != nil {
		return "", fmt.Errorf("compositionlog: append record at position %d: %w", nextPosition, err)
	}
	if err := l.writeHead(head{Position: nextPosition, HashHex: recordHashHex}); err != nil {
		return "", err
	}
	return recordHashHex, nil
}

// RecordAt reads the record stored at position along with its own hash.
func (l *Log) RecordAt(position int64) (Record, string, error) {
	data, err := l.files.ReadBlob(filestore.CompositionLogKey(position))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return Record{}, "", fmt.Errorf("compositionlog: no record at position %d: %w", position, err)
		}
		return Record{}, "", fmt.Errorf("compositionlog: read record at position %d: %w", position, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, "", fmt.Errorf("compositionlog: corrupt record at position %d: %w", position, err)
	}
	return r, hashRecordBytes(data), nil
}

// RecordWithHash pairs a decoded Record with its own hash and log position.
type RecordWithHash struct {
	Position int64
	HashHex  string
	Record   Record
}

// ReverseIterator yields records from the head backward to genesis, one at
// a time — the "lazy sequence" of spec §4.5 — without materializing the
// whole log in memory.
type ReverseIterator struct {
	log      *Log
	position int64 // next position to read; < 0 means exhausted
}

// EnumerateReverse returns an iterator starting at the current head. If the
// log is empty, the returned iterator is immediately exhausted.
func (l *Log) EnumerateReverse() (*ReverseIterator, error) {
	h, err := l.readHead()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return &ReverseIterator{log: l, position: -1}, nil
	}
	return &ReverseIterator{log: l, position: h.Position}, nil
}

// Next returns the next record walking backward, or ok=false once the
// iterator is exhausted.
func (it *ReverseIterator) Next() (RecordWithHash, bool, error) {
	if it.position < 0 {
		return RecordWithHash{}, false, nil
	}
	record, hashHex, err := it.log.RecordAt(it.position)
	if err != nil {
		return RecordWithHash{}, false, err
	}
	out := RecordWithHash{Position: it.position, HashHex: hashHex, Record: record}
	it.position--
	return out, true, nil
}
