// Copyright 2025 Pine Host Project
package remoteaudit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pinehost/pine-host/pkg/compositionlog"
)

// MirroredEvent is the Firestore document shape for a mirrored composition
// log record.
type MirroredEvent struct {
	Position      int64     `firestore:"position"`
	RecordHashHex string    `firestore:"recordHash"`
	ParentHashHex string    `firestore:"parentHash"`
	EventKind     string    `firestore:"eventKind"`
	FunctionName  string    `firestore:"functionName,omitempty"`
	MirrorHash    string    `firestore:"mirrorHash"`
	MirroredAt    time.Time `firestore:"mirroredAt,serverTimestamp"`
}

// MirrorRecord writes rec as a document keyed by its own hash — writes are
// naturally idempotent since the document ID is content-derived, so a
// retried mirror attempt after a partial failure never double-records.
// A disabled client treats this as a no-op success.
func (c *Client) MirrorRecord(ctx context.Context, position int64, hashHex string, rec compositionlog.Record) error {
	if !c.IsEnabled() {
		c.logger.Printf("remote audit disabled - skipping mirror of record %s", hashHex)
		return nil
	}
	if c.firestore == nil {
		return fmt.Errorf("remoteaudit: firestore client not initialized")
	}

	event := MirroredEvent{
		Position:      position,
		RecordHashHex: hashHex,
		ParentHashHex: rec.ParentHashHex,
		EventKind:     string(rec.Event.Kind),
		FunctionName:  rec.Event.FunctionName,
	}
	event.MirrorHash = mirrorHash(event)

	_, err := c.firestore.Collection(c.collection).Doc(hashHex).Set(ctx, event)
	if err != nil {
		return fmt.Errorf("remoteaudit: mirror record %s: %w", hashHex, err)
	}
	return nil
}

// MirrorRecordAsync runs MirrorRecord in a goroutine and logs any failure
// rather than propagating it — the composition log append this mirrors has
// already committed durably by the time this is called (spec §4.6's
// commit-phase restore), so a mirror failure must never unwind it.
func (c *Client) MirrorRecordAsync(position int64, hashHex string, rec compositionlog.Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.MirrorRecord(ctx, position, hashHex, rec); err != nil {
			c.logger.Printf("remote audit mirror failed for record %s: %v", hashHex, err)
		}
	}()
}

// mirrorHash computes a content hash over the mirrored fields, stored
// alongside the document so an off-box reader can detect a corrupted or
// tampered mirror without needing to recompute against the authoritative
// file-store log.
func mirrorHash(event MirroredEvent) string {
	data, err := json.Marshal(struct {
		Position      int64  `json:"position"`
		RecordHashHex string `json:"recordHash"`
		ParentHashHex string `json:"parentHash"`
		EventKind     string `json:"eventKind"`
		FunctionName  string `json:"functionName"`
	}{event.Position, event.RecordHashHex, event.ParentHashHex, event.EventKind, event.FunctionName})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
