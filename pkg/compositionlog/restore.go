package compositionlog

import (
	"errors"
	"fmt"

	"github.com/pinehost/pine-host/pkg/contentstore"
)

// ReductionLookup resolves a provisional reduction by the record hash it
// summarizes. *contentstore.Store satisfies this via LoadProvisionalReduction.
type ReductionLookup interface {
	LoadProvisionalReduction(compositionHashHex string) (contentstore.ProvisionalReduction, error)
}

// RestoreSuffix implements the reduction-directed restore of spec §4.5:
// enumerate the log in reverse and, for each record, attempt to load a
// provisional reduction keyed by that record's hash. Take records up to and
// including the first one with a usable reduction, then reverse — a
// bounded-suffix replay whose length is only the records since the last
// snapshot, not the full history.
//
// The returned records are in forward (chronological) order. reduction is
// non-nil when a snapshot was found; the caller seeds its in-memory
// application from it before replaying the returned records on top.
func RestoreSuffix(log *Log, reductions ReductionLookup) ([]RecordWithHash, *contentstore.ProvisionalReduction, error) {
	it, err := log.EnumerateReverse()
	if err != nil {
		return nil, nil, fmt.Errorf("compositionlog: restore: %w", err)
	}

	var suffix []RecordWithHash
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("compositionlog: restore: %w", err)
		}
		if !ok {
			// Reached genesis without finding a reduction: the whole log
			// is the bounded suffix.
			break
		}
		suffix = append(suffix, rec)

		reduction, err := reductions.LoadProvisionalReduction(rec.HashHex)
		if err != nil {
			if errors.Is(err, contentstore.ErrComponentNotFound) {
				continue
			}
			return nil, nil, fmt.Errorf("compositionlog: restore: load reduction for %s: %w", rec.HashHex, err)
		}
		reverseInPlace(suffix)
		return suffix, &reduction, nil
	}

	reverseInPlace(suffix)
	return suffix, nil, nil
}

func reverseInPlace(records []RecordWithHash) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
