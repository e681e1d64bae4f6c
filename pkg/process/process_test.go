package process

import (
	"log"
	"path/filepath"
	"testing"

	"github.com/pinehost/pine-host/internal/testapp"
	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/filestore"
	"github.com/pinehost/pine-host/pkg/migration"
)

// newSeedProcess builds a bare Process directly against an empty store, the
// same way the first deploy-and-init against a brand-new deployment would.
func newSeedProcess(files filestore.Store, driver *migration.Driver) *Process {
	p, err := NewSeed(files, driver, silentLogger())
	if err != nil {
		panic(err)
	}
	return p
}

func newTestFileStore(t *testing.T) filestore.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := filestore.NewDiskStore(filepath.Join(dir, "root"), filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDriver() *migration.Driver {
	return migration.New(testapp.Build)
}

func silentLogger() *log.Logger {
	return log.New(log.Writer(), "", 0)
}

// TestCounterReplay mirrors spec §8 scenario 1: deploy a counter app, submit
// events [3, -1, 10], observe state "12", then restart (simulated by a
// fresh LoadFromStore) and observe "12" again.
func TestCounterReplay(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	p, _, err := LoadFromStore(files, driver, silentLogger())
	if err != nil {
		t.Fatalf("LoadFromStore on empty store: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no process on an empty store")
	}

	seed := newSeedProcess(files, driver)
	if err := seed.DeployAndInit(contentstore.Leaf([]byte("counter-app"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}

	for _, delta := range []int64{3, -1, 10} {
		if _, err := seed.ProcessElmAppEvent(toJSONInt(delta)); err != nil {
			t.Fatalf("ProcessElmAppEvent(%d): %v", delta, err)
		}
	}

	state, err := seed.ElmAppState()
	if err != nil {
		t.Fatalf("ElmAppState: %v", err)
	}
	if state != "12" {
		t.Fatalf("expected state \"12\" after events, got %q", state)
	}

	restored, _, err := LoadFromStore(files, driver, silentLogger())
	if err != nil {
		t.Fatalf("LoadFromStore after restart: %v", err)
	}
	if restored == nil {
		t.Fatalf("expected a restorable process after restart")
	}
	restoredState, err := restored.ElmAppState()
	if err != nil {
		t.Fatalf("ElmAppState after restart: %v", err)
	}
	if restoredState != "12" {
		t.Fatalf("expected restored state \"12\", got %q", restoredState)
	}
}

// TestDeployThenMigrate mirrors spec §8 scenario 5.
func TestDeployThenMigrate(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	seed := newSeedProcess(files, driver)
	if err := seed.DeployAndInit(contentstore.Leaf([]byte("app-a"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}
	for _, delta := range []int64{2, 2, 1} {
		if _, err := seed.ProcessElmAppEvent(toJSONInt(delta)); err != nil {
			t.Fatalf("ProcessElmAppEvent(%d): %v", delta, err)
		}
	}
	state, err := seed.ElmAppState()
	if err != nil || state != "5" {
		t.Fatalf("expected state \"5\" before migrate, got %q err=%v", state, err)
	}

	if err := seed.DeployAndMigrate(contentstore.Leaf([]byte("app-b"))); err != nil {
		t.Fatalf("DeployAndMigrate: %v", err)
	}
	state, err = seed.ElmAppState()
	if err != nil || state != "50" {
		t.Fatalf("expected state \"50\" after migrate, got %q err=%v", state, err)
	}
}

// TestRevertProcessTo mirrors spec §8 scenario 6: append three events,
// capture the hash after the second, revert to it, and observe state
// equals the post-second-event state; new events chain from the revert.
func TestRevertProcessTo(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	seed := newSeedProcess(files, driver)
	if err := seed.DeployAndInit(contentstore.Leaf([]byte("counter-app"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}

	if _, err := seed.ProcessElmAppEvent(toJSONInt(1)); err != nil {
		t.Fatalf("event 1: %v", err)
	}
	secondHash, err := seedProcessEventAndCapture(seed, 2)
	if err != nil {
		t.Fatalf("event 2: %v", err)
	}
	if _, err := seed.ProcessElmAppEvent(toJSONInt(4)); err != nil {
		t.Fatalf("event 3: %v", err)
	}

	state, err := seed.ElmAppState()
	if err != nil || state != "7" {
		t.Fatalf("expected state \"7\" before revert, got %q err=%v", state, err)
	}

	if err := seed.RevertProcessTo(secondHash); err != nil {
		t.Fatalf("RevertProcessTo: %v", err)
	}
	state, err = seed.ElmAppState()
	if err != nil || state != "3" {
		t.Fatalf("expected state \"3\" (1+2) after revert, got %q err=%v", state, err)
	}

	if _, err := seed.ProcessElmAppEvent(toJSONInt(100)); err != nil {
		t.Fatalf("event after revert: %v", err)
	}
	state, err = seed.ElmAppState()
	if err != nil || state != "103" {
		t.Fatalf("expected state \"103\" after post-revert event, got %q err=%v", state, err)
	}
}

// TestRevertProcessToAcrossReductionSnapshot confirms a revert target whose
// record predates the nearest provisional reduction still resolves
// correctly — reduction-maintenance (pkg/process/reduction_maintenance.go)
// runs independently of which records remain legitimate revert targets, and
// never deletes log segments (only TruncateProcessHistory does), so an
// older target must still be reachable even though the bounded-suffix
// restore's own replay pass never visits it.
func TestRevertProcessToAcrossReductionSnapshot(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	seed := newSeedProcess(files, driver)
	if err := seed.DeployAndInit(contentstore.Leaf([]byte("counter-app"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}

	if _, err := seed.ProcessElmAppEvent(toJSONInt(1)); err != nil {
		t.Fatalf("event 1: %v", err)
	}
	earlyHash, err := seedProcessEventAndCapture(seed, 2)
	if err != nil {
		t.Fatalf("event 2: %v", err)
	}

	if _, err := seed.ProcessElmAppEvent(toJSONInt(10)); err != nil {
		t.Fatalf("event 3: %v", err)
	}

	// A reduction snapshot of the state after event 3 makes the
	// bounded-suffix replay start at event 3's record, so it never sees
	// earlyHash again.
	if _, err := seed.StoreReductionRecordForCurrentState(); err != nil {
		t.Fatalf("StoreReductionRecordForCurrentState: %v", err)
	}

	if _, err := seed.ProcessElmAppEvent(toJSONInt(20)); err != nil {
		t.Fatalf("event 4: %v", err)
	}

	state, err := seed.ElmAppState()
	if err != nil || state != "33" {
		t.Fatalf("expected state \"33\" before revert, got %q err=%v", state, err)
	}

	if err := seed.RevertProcessTo(earlyHash); err != nil {
		t.Fatalf("RevertProcessTo across reduction snapshot: %v", err)
	}
	state, err = seed.ElmAppState()
	if err != nil || state != "3" {
		t.Fatalf("expected state \"3\" (1+2) after revert across a reduction, got %q err=%v", state, err)
	}
}

// fakeReductionRecorder collects RecordReductionSnapshot calls for
// assertions, standing in for pkg/metrics's Registry.
type fakeReductionRecorder struct {
	successes int
	failures  int
}

func (f *fakeReductionRecorder) RecordReductionSnapshot(success bool) {
	if success {
		f.successes++
		return
	}
	f.failures++
}

// TestStoreReductionRecordForCurrentStateReportsOutcome confirms a wired
// ReductionRecorder observes both a successful snapshot and a failed one
// (no live app to snapshot from).
func TestStoreReductionRecordForCurrentStateReportsOutcome(t *testing.T) {
	files := newTestFileStore(t)
	driver := newTestDriver()

	seed := newSeedProcess(files, driver)
	recorder := &fakeReductionRecorder{}
	seed.SetReductionRecorder(recorder)

	if _, err := seed.StoreReductionRecordForCurrentState(); err == nil {
		t.Fatalf("expected an error snapshotting before any deployment")
	}
	if recorder.failures != 1 || recorder.successes != 0 {
		t.Fatalf("expected 1 failure 0 successes, got failures=%d successes=%d", recorder.failures, recorder.successes)
	}

	if err := seed.DeployAndInit(contentstore.Leaf([]byte("counter-app"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}
	if _, err := seed.StoreReductionRecordForCurrentState(); err != nil {
		t.Fatalf("StoreReductionRecordForCurrentState: %v", err)
	}
	if recorder.successes != 1 || recorder.failures != 1 {
		t.Fatalf("expected 1 success 1 failure, got successes=%d failures=%d", recorder.successes, recorder.failures)
	}
}

func seedProcessEventAndCapture(p *Process, delta int64) (string, error) {
	if _, err := p.ProcessElmAppEvent(toJSONInt(delta)); err != nil {
		return "", err
	}
	return p.LastCompositionLogRecordHashHex(), nil
}

func toJSONInt(n int64) string {
	if n < 0 {
		return "-" + toJSONInt(-n)
	}
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
