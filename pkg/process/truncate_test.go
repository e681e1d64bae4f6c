// Copyright 2025 Pine Host Project
package process

import (
	"context"
	"testing"

	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/filestore"
)

// TestTruncateProcessHistoryDeletesSegmentsBeforeCheckpoint deploys a
// counter app, applies several events, truncates, and confirms restore
// still observes the correct state afterward, even though the log
// segments preceding the new checkpoint are gone.
func TestTruncateProcessHistoryDeletesSegmentsBeforeCheckpoint(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	seed := newSeedProcess(files, driver)
	if err := seed.DeployAndInit(contentstore.Leaf([]byte("counter-app"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}
	for _, delta := range []int64{1, 2, 3} {
		if _, err := seed.ProcessElmAppEvent(toJSONInt(delta)); err != nil {
			t.Fatalf("ProcessElmAppEvent(%d): %v", delta, err)
		}
	}

	report, err := seed.TruncateProcessHistory(context.Background())
	if err != nil {
		t.Fatalf("TruncateProcessHistory: %v", err)
	}
	if report.Interrupted {
		t.Fatalf("expected truncate to complete, got interrupted")
	}
	if report.SegmentsDeleted == 0 {
		t.Fatalf("expected at least one segment deleted")
	}

	restored, _, err := LoadFromStore(files, driver, silentLogger())
	if err != nil {
		t.Fatalf("LoadFromStore after truncate: %v", err)
	}
	if restored == nil {
		t.Fatalf("expected a restorable process after truncate")
	}
	state, err := restored.ElmAppState()
	if err != nil || state != "6" {
		t.Fatalf("expected state \"6\" after truncate and restore, got %q err=%v", state, err)
	}

	if _, err := restored.ProcessElmAppEvent(toJSONInt(4)); err != nil {
		t.Fatalf("event after truncate: %v", err)
	}
	state, err = restored.ElmAppState()
	if err != nil || state != "10" {
		t.Fatalf("expected state \"10\" after post-truncate event, got %q err=%v", state, err)
	}
}

// TestTruncateProcessHistoryRespectsCancellation confirms an
// already-cancelled context stops the sweep before deleting anything,
// leaving the log fully intact.
func TestTruncateProcessHistoryRespectsCancellation(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	seed := newSeedProcess(files, driver)
	if err := seed.DeployAndInit(contentstore.Leaf([]byte("counter-app"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}
	if _, err := seed.ProcessElmAppEvent(toJSONInt(5)); err != nil {
		t.Fatalf("event: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := seed.TruncateProcessHistory(ctx)
	if err != nil {
		t.Fatalf("TruncateProcessHistory: %v", err)
	}
	if !report.Interrupted {
		t.Fatalf("expected truncate to report interrupted with a pre-cancelled context")
	}

	if _, err := files.ReadBlob(filestore.CompositionLogKey(0)); err != nil {
		t.Fatalf("expected segment 0 to still be present: %v", err)
	}
}
