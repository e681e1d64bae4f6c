// Copyright 2025 Pine Host Project
//
// Package process implements the persistent process supervisor (spec
// §4.6): the single-writer owner of a deployed application's live state,
// backed by the composition log and content store, supporting restore from
// durable history and a two-phase "attempt continue" protocol for
// admin-driven deployments and reverts.
package process

import (
	"fmt"
	"log"
	"sync"

	"github.com/pinehost/pine-host/pkg/compositionlog"
	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/filestore"
	"github.com/pinehost/pine-host/pkg/migration"
	"github.com/pinehost/pine-host/pkg/value"
)

// Process is the single live deployed application and the durable history
// behind it. Every exported method that touches liveApp acquires mu for its
// entire critical section — spec §5's processLock — so at most one mutator
// runs at a time and readers observe a consistent snapshot.
type Process struct {
	mu sync.Mutex // processLock

	files   filestore.Store
	log     *compositionlog.Log
	content *contentstore.Store
	driver  *migration.Driver
	logger  *log.Logger

	appConfigTreeHashHex            string
	liveApp                         migration.App
	initOrMigrateCmds               *migration.Cmds
	lastCompositionLogRecordHashHex string
	disposed                        bool
	reductionRecorder               ReductionRecorder
}

// ReductionRecorder observes the outcome of reduction-snapshot attempts for
// external metrics collection (pkg/metrics's Registry satisfies this).
// Process never depends on a concrete metrics library directly — only on
// this narrow interface, set via SetReductionRecorder.
type ReductionRecorder interface {
	RecordReductionSnapshot(success bool)
}

// SetReductionRecorder wires r to observe future
// StoreReductionRecordForCurrentState outcomes. Passing nil disables
// recording.
func (p *Process) SetReductionRecorder(r ReductionRecorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reductionRecorder = r
}

// stateBlob stores a plain JSON string as a raw blob component
// — not the UTF-32 per-codepoint list encoding value.EncodeString produces
// for in-language PineVM strings. Composition events carry opaque
// serialized JSON, never PineVM string values (spec §9 Open Question c).
func stateBlob(jsonStr string) value.Value {
	return value.NewBlob([]byte(jsonStr))
}

func stringFromBlob(v value.Value) (string, error) {
	b, err := v.BlobBytes()
	if err != nil {
		return "", fmt.Errorf("process: expected a blob-encoded JSON string: %w", err)
	}
	return string(b), nil
}

// appliedFunctionRecord is the JSON shape stored for
// ApplyFunctionOnElmAppState — a named-function invocation record (spec
// §3).
type appliedFunctionRecord struct {
	FunctionName string `json:"functionName"`
	ArgsJSON     string `json:"argsJson"`
}

// LoadFromStore restores a Process from files, or returns a nil Process
// with no error if the log holds no deployable history yet (spec §4.6:
// loadFromStore returns an Option).
func LoadFromStore(files filestore.Store, driver *migration.Driver, logger *log.Logger) (*Process, *migration.Cmds, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[Process] ", log.LstdFlags)
	}
	p, cmds, err := restoreFromStore(files, driver, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, cmds, nil
}

// NewSeed constructs a bare Process against files with no deployment yet —
// the starting point for the very first DeployAndInit against a brand-new
// store, since LoadFromStore returns a nil Process until at least one
// record exists to restore from.
func NewSeed(files filestore.Store, driver *migration.Driver, logger *log.Logger) (*Process, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[Process] ", log.LstdFlags)
	}
	return &Process{
		files:   files,
		log:     compositionlog.New(files),
		content: contentstore.New(files),
		driver:  driver,
		logger:  logger,
	}, nil
}

// restoreFromStore implements the restore algorithm of spec §4.6, used both
// by LoadFromStore and by the two-phase attempt-continue protocol's test
// and commit phases.
func restoreFromStore(files filestore.Store, driver *migration.Driver, logger *log.Logger) (*Process, *migration.Cmds, error) {
	clog := compositionlog.New(files)
	content := contentstore.New(files)

	suffix, reduction, err := compositionlog.RestoreSuffix(clog, content)
	if err != nil {
		return nil, nil, fmt.Errorf("process: restore: %w", err)
	}
	if len(suffix) == 0 {
		return nil, nil, nil
	}

	p := &Process{
		files:   files,
		log:     clog,
		content: content,
		driver:  driver,
		logger:  logger,
	}

	seen := make(map[string]bool, len(suffix))
	// stateSnapshots records, for each record hash seen so far in this
	// replay, the live app's serialized state immediately after that
	// record was applied. RevertProcessTo uses it to restore state as of
	// its target (see applyRecordedEventLocked).
	stateSnapshots := make(map[string]string, len(suffix))
	var lastHash string

	for i, rec := range suffix {
		if reduction != nil && i == 0 && rec.HashHex == reduction.ReducedCompositionHashHex {
			if err := p.applyReductionLocked(*reduction); err != nil {
				return nil, nil, fmt.Errorf("process: restore: apply reduction at %s: %w", rec.HashHex, err)
			}
		} else if err := p.applyRecordedEventLocked(rec.Record.Event, seen, stateSnapshots); err != nil {
			return nil, nil, fmt.Errorf("process: restore: record at position %d (%s): %w", rec.Position, rec.HashHex, err)
		}
		seen[rec.HashHex] = true
		if p.liveApp != nil {
			stateSnapshots[rec.HashHex] = p.liveApp.StateJSON()
		}
		lastHash = rec.HashHex
	}

	if p.liveApp == nil || p.appConfigTreeHashHex == "" {
		return nil, nil, ErrInsufficientHistory
	}
	p.lastCompositionLogRecordHashHex = lastHash

	return p, p.initOrMigrateCmds, nil
}

func (p *Process) buildAppFromTreeHash(treeHashHex string) (migration.App, error) {
	tree, err := p.content.ParseAsTree(treeHashHex)
	if err != nil {
		return nil, fmt.Errorf("process: load deployed tree %s: %w", treeHashHex, err)
	}
	app, err := p.driver.BuildApp(tree)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (p *Process) loadStateJSON(stateHashHex string) (string, error) {
	v, err := p.content.LoadComponent(stateHashHex)
	if err != nil {
		return "", fmt.Errorf("process: load state component %s: %w", stateHashHex, err)
	}
	return stringFromBlob(v)
}

func (p *Process) applyReductionLocked(reduction contentstore.ProvisionalReduction) error {
	app, err := p.buildAppFromTreeHash(reduction.AppConfigHashHex)
	if err != nil {
		return err
	}
	stateJSON, err := p.loadStateJSON(reduction.ElmAppStateHashHex)
	if err != nil {
		return err
	}
	if err := app.SetStateJSON(stateJSON); err != nil {
		return fmt.Errorf("process: set state from reduction: %w", err)
	}
	p.liveApp = app
	p.appConfigTreeHashHex = reduction.AppConfigHashHex
	return nil
}

func (p *Process) applyRecordedEventLocked(event compositionlog.Event, seen map[string]bool, stateSnapshots map[string]string) error {
	switch event.Kind {
	case compositionlog.KindUpdateElmAppStateForEvent:
		v, err := p.content.LoadComponent(event.BlobRefHashHex)
		if err != nil {
			return fmt.Errorf("load event blob %s: %w", event.BlobRefHashHex, err)
		}
		eventJSON, err := stringFromBlob(v)
		if err != nil {
			return err
		}
		if p.liveApp == nil {
			return ErrInsufficientHistory
		}
		if _, err := p.liveApp.ProcessEvent(eventJSON); err != nil {
			return fmt.Errorf("replay processEvent: %w", err)
		}
		return nil

	case compositionlog.KindApplyFunctionOnElmAppState:
		v, err := p.content.LoadComponent(event.BlobRefHashHex)
		if err != nil {
			return fmt.Errorf("load applied-function record %s: %w", event.BlobRefHashHex, err)
		}
		data, err := stringFromBlob(v)
		if err != nil {
			return err
		}
		var rec appliedFunctionRecord
		if err := migration.UnmarshalInto(data, &rec); err != nil {
			return err
		}
		if p.liveApp == nil {
			return ErrInsufficientHistory
		}
		if _, err := p.liveApp.ApplyFunction(rec.FunctionName, rec.ArgsJSON); err != nil {
			return fmt.Errorf("replay applyFunction %q: %w", rec.FunctionName, err)
		}
		return nil

	case compositionlog.KindSetElmAppState:
		stateJSON, err := p.loadStateJSON(event.ValueRefHashHex)
		if err != nil {
			return err
		}
		if p.liveApp == nil {
			return ErrInsufficientHistory
		}
		if err := p.liveApp.SetStateJSON(stateJSON); err != nil {
			return fmt.Errorf("replay setState: %w", err)
		}
		return nil

	case compositionlog.KindDeployAppConfigAndInitElmAppState:
		tree, err := p.content.ParseAsTree(event.TreeRefHashHex)
		if err != nil {
			return fmt.Errorf("load deployed tree %s: %w", event.TreeRefHashHex, err)
		}
		app, cmds, err := p.driver.Init(tree)
		if err != nil {
			return fmt.Errorf("replay init: %w", err)
		}
		p.liveApp = app
		p.appConfigTreeHashHex = event.TreeRefHashHex
		p.initOrMigrateCmds = &cmds
		return nil

	case compositionlog.KindDeployAppConfigAndMigrateElmAppState:
		if p.liveApp == nil {
			return ErrNoPriorApplication
		}
		priorStateJSON := p.liveApp.StateJSON()
		tree, err := p.content.ParseAsTree(event.TreeRefHashHex)
		if err != nil {
			return fmt.Errorf("load deployed tree %s: %w", event.TreeRefHashHex, err)
		}
		app, cmds, err := p.driver.Migrate(tree, priorStateJSON)
		if err != nil {
			return fmt.Errorf("replay migrate: %w", err)
		}
		p.liveApp = app
		p.appConfigTreeHashHex = event.TreeRefHashHex
		p.initOrMigrateCmds = &cmds
		return nil

	case compositionlog.KindRevertProcessTo:
		// Spec §4.6 describes this case as "a no-op beyond the chain
		// assertion" — but for revert to be observable (spec §8 scenario
		// 6: state afterward equals the post-target-record state), the
		// live app's state must actually be restored to what it was at
		// the target record, not merely validated. We resolve this open
		// point by restoring state from the snapshot captured when the
		// target record was first applied in this same replay pass; the
		// chain itself is never truncated (Open Question b), only the
		// live state is rewound.
		snapshot, ok := stateSnapshots[event.RecordHashRefHex]
		if !ok || !seen[event.RecordHashRefHex] {
			// The current replay pass only covers the bounded suffix
			// since the nearest provisional reduction — a
			// restore-performance optimization (spec §4.5), not a bound
			// on which records are valid revert targets (spec.md:153
			// requires only that the hash name a previously seen
			// record, full stop). Fall back to a full replay from
			// genesis to resolve the target's state.
			resolved, err := p.resolveStateAtRecordLocked(event.RecordHashRefHex)
			if err != nil {
				return err
			}
			snapshot = resolved
		}
		if p.liveApp == nil {
			return ErrInsufficientHistory
		}
		if err := p.liveApp.SetStateJSON(snapshot); err != nil {
			return fmt.Errorf("revert: restore snapshot state: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unrecognized composition event kind %q", event.Kind)
	}
}

// resolveStateAtRecordLocked reconstructs the live application's serialized
// state as of recordHashHex by replaying the full composition log from
// genesis, independent of the bounded-suffix restore's reduction-directed
// optimization. It is the fallback path for RevertProcessTo targets that
// predate the nearest provisional reduction snapshot and so never appear in
// a bounded-suffix replay's own seen/stateSnapshots maps — reduction
// maintenance runs on a timer unrelated to which records remain legitimate
// revert targets (spec.md:153), so a target can be fully present and
// readable in the durable log via Log.EnumerateReverse/RecordAt while still
// missing from that one replay pass's bounded state.
func (p *Process) resolveStateAtRecordLocked(recordHashHex string) (string, error) {
	it, err := p.log.EnumerateReverse()
	if err != nil {
		return "", fmt.Errorf("process: revert: enumerate log: %w", err)
	}

	var chain []compositionlog.RecordWithHash
	found := false
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return "", fmt.Errorf("process: revert: enumerate log: %w", err)
		}
		if !ok {
			break
		}
		chain = append(chain, rec)
		if rec.HashHex == recordHashHex {
			found = true
		}
	}
	if !found {
		return "", ErrRevertTargetNotSeen
	}
	reverseRecordChain(chain)

	replay := &Process{
		files:   p.files,
		log:     p.log,
		content: p.content,
		driver:  p.driver,
		logger:  p.logger,
	}
	seen := make(map[string]bool, len(chain))
	stateSnapshots := make(map[string]string, len(chain))
	for _, rec := range chain {
		if err := replay.applyRecordedEventLocked(rec.Record.Event, seen, stateSnapshots); err != nil {
			return "", fmt.Errorf("process: revert: replay from genesis at position %d (%s): %w", rec.Position, rec.HashHex, err)
		}
		seen[rec.HashHex] = true
		if replay.liveApp != nil {
			stateSnapshots[rec.HashHex] = replay.liveApp.StateJSON()
		}
		if rec.HashHex == recordHashHex {
			break
		}
	}
	if replay.liveApp == nil {
		return "", ErrInsufficientHistory
	}
	return replay.liveApp.StateJSON(), nil
}

func reverseRecordChain(records []compositionlog.RecordWithHash) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
