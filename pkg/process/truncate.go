// Copyright 2025 Pine Host Project
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/filestore"
)

// DefaultTruncateBudget bounds how long TruncateProcessHistory spends
// deleting stale composition-log segments before returning, per spec §5's
// wall-clock-budgeted cancellation for this operation. Interrupting the
// sweep early only means a future run starts from a farther-back position;
// it never corrupts the log, since deletion only ever targets positions
// strictly before the fresh checkpoint's own position.
const DefaultTruncateBudget = 30 * time.Second

// TruncateReport summarizes a TruncateProcessHistory run.
type TruncateReport struct {
	CheckpointRecordHashHex string
	SegmentsDeleted         int
	Interrupted             bool
}

// TruncateProcessHistory compacts the composition log (spec §4.6's
// truncateProcessHistory, named but left unimplemented by the core
// restore/revert algorithms): it first stores a fresh provisional
// reduction snapshotting the live app's current state, then deletes every
// composition-log segment at a position strictly before that snapshot's
// record — those segments are unreachable by any future restore, since
// RestoreSuffix always stops at the first reduction it finds walking
// backward from the head.
//
// ctx bounds the deletion sweep; if it's cancelled mid-sweep, the already
// deleted segments stay deleted and the remainder is left for a later run.
func (p *Process) TruncateProcessHistory(ctx context.Context) (TruncateReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return TruncateReport{}, ErrDisposed
	}
	if p.liveApp == nil {
		return TruncateReport{}, ErrInsufficientHistory
	}

	stateJSON := p.liveApp.StateJSON()
	stateHashHex, err := p.content.StoreComponent(stateBlob(stateJSON))
	if err != nil {
		return TruncateReport{}, fmt.Errorf("process: truncate: store checkpoint state: %w", err)
	}

	checkpointHashHex := p.lastCompositionLogRecordHashHex
	reduction := contentstore.ProvisionalReduction{
		ReducedCompositionHashHex: checkpointHashHex,
		AppConfigHashHex:          p.appConfigTreeHashHex,
		ElmAppStateHashHex:        stateHashHex,
	}
	if err := p.content.StoreProvisionalReduction(reduction); err != nil {
		return TruncateReport{}, fmt.Errorf("process: truncate: store checkpoint reduction: %w", err)
	}

	checkpointPosition, err := p.positionOfRecordLocked(checkpointHashHex)
	if err != nil {
		return TruncateReport{}, fmt.Errorf("process: truncate: locate checkpoint position: %w", err)
	}

	report := TruncateReport{CheckpointRecordHashHex: checkpointHashHex}
	keys, err := p.files.ListKeys(filestore.CompositionLogPrefix)
	if err != nil {
		return TruncateReport{}, fmt.Errorf("process: truncate: list log segments: %w", err)
	}

	for i := int64(0); i < checkpointPosition; i++ {
		select {
		case <-ctx.Done():
			report.Interrupted = true
			return report, nil
		default:
		}

		key := filestore.CompositionLogKey(i)
		if !containsKey(keys, key) {
			continue
		}
		if err := p.files.DeleteBlob(key); err != nil {
			return report, fmt.Errorf("process: truncate: delete segment at position %d: %w", i, err)
		}
		report.SegmentsDeleted++
	}

	if p.logger != nil {
		p.logger.Printf("🧹 truncated process history: deleted %d segment(s) before checkpoint %s", report.SegmentsDeleted, checkpointHashHex)
	}
	return report, nil
}

func containsKey(keys []string, target string) bool {
	for _, k := range keys {
		if k == target {
			return true
		}
	}
	return false
}

// positionOfRecordLocked walks the log backward to find the position of
// the record hashed hashHex. Callers must hold p.mu.
func (p *Process) positionOfRecordLocked(hashHex string) (int64, error) {
	it, err := p.log.EnumerateReverse()
	if err != nil {
		return 0, err
	}
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("record %s not found in log", hashHex)
		}
		if rec.HashHex == hashHex {
			return rec.Position, nil
		}
	}
}
