package process

import (
	"encoding/json"
	"fmt"

	"github.com/pinehost/pine-host/pkg/compositionlog"
	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/migration"
)

// ProcessElmAppEvent applies a serialized application event to the live
// app, appends UpdateElmAppStateForEvent, and returns the function's cmds
// (spec §4.6).
func (p *Process) ProcessElmAppEvent(eventJSON string) (migration.Cmds, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return migration.Cmds{}, ErrDisposed
	}

	cmds, err := p.liveApp.ProcessEvent(eventJSON)
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: processElmAppEvent: %w", err)
	}

	blobHashHex, err := p.content.StoreComponent(stateBlob(eventJSON))
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: store event blob: %w", err)
	}
	recordHashHex, err := p.log.AppendRecord(compositionlog.UpdateElmAppStateForEvent(blobHashHex))
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: append event record: %w", err)
	}
	p.lastCompositionLogRecordHashHex = recordHashHex
	return cmds, nil
}

// ApplyFunctionRequest is the argument to ApplyFunctionOnMainBranch (spec
// §4.6).
type ApplyFunctionRequest struct {
	FunctionName         string
	SerializedArgsJSON   string
	CommitResultingState bool
}

// ApplyFunctionOnMainBranch invokes a named function against the live app.
// If the state changed and request.CommitResultingState is set, it appends
// an ApplyFunctionOnElmAppState record (spec §4.6).
func (p *Process) ApplyFunctionOnMainBranch(request ApplyFunctionRequest) (migration.Cmds, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return migration.Cmds{}, ErrDisposed
	}

	prevStateJSON := p.liveApp.StateJSON()
	cmds, err := p.liveApp.ApplyFunction(request.FunctionName, request.SerializedArgsJSON)
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: applyFunctionOnMainBranch %q: %w", request.FunctionName, err)
	}

	if !request.CommitResultingState {
		return cmds, nil
	}
	newStateJSON := p.liveApp.StateJSON()
	if newStateJSON == prevStateJSON {
		return cmds, nil
	}

	data, err := json.Marshal(appliedFunctionRecord{
		FunctionName: request.FunctionName,
		ArgsJSON:     request.SerializedArgsJSON,
	})
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: marshal applied-function record: %w", err)
	}
	blobHashHex, err := p.content.StoreComponent(stateBlob(string(data)))
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: store applied-function record: %w", err)
	}
	recordHashHex, err := p.log.AppendRecord(compositionlog.ApplyFunctionOnElmAppState(request.FunctionName, blobHashHex))
	if err != nil {
		return migration.Cmds{}, fmt.Errorf("process: append applied-function record: %w", err)
	}
	p.lastCompositionLogRecordHashHex = recordHashHex
	return cmds, nil
}

// SetStateOnMainBranch replaces the live app's state wholesale and appends
// a SetElmAppState record (spec §4.6).
func (p *Process) SetStateOnMainBranch(stateJSON string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return ErrDisposed
	}

	if err := p.liveApp.SetStateJSON(stateJSON); err != nil {
		return fmt.Errorf("process: setStateOnMainBranch: %w", err)
	}
	hashHex, err := p.content.StoreComponent(stateBlob(stateJSON))
	if err != nil {
		return fmt.Errorf("process: store state component: %w", err)
	}
	recordHashHex, err := p.log.AppendRecord(compositionlog.SetElmAppState(hashHex))
	if err != nil {
		return fmt.Errorf("process: append setState record: %w", err)
	}
	p.lastCompositionLogRecordHashHex = recordHashHex
	return nil
}

// ElmAppState returns the live app's current serialized state, per the
// public GET /api/elm-app-state surface.
func (p *Process) ElmAppState() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return "", ErrDisposed
	}
	return p.liveApp.StateJSON(), nil
}

// LastCompositionLogRecordHashHex returns the hash of the most recently
// applied record.
func (p *Process) LastCompositionLogRecordHashHex() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCompositionLogRecordHashHex
}

// StoreReductionRecordForCurrentState snapshots the live app's current
// state under the composition hash it summarizes (spec §4.6). Before the
// snapshot, the supervisor queries the live app for its state via the
// named-function interface, matching spec §4.6's reduction-maintenance
// description.
func (p *Process) StoreReductionRecordForCurrentState() (report StoreReductionReport, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	defer func() {
		if p.reductionRecorder != nil {
			p.reductionRecorder.RecordReductionSnapshot(err == nil)
		}
	}()

	if p.disposed {
		return StoreReductionReport{}, ErrDisposed
	}
	if p.liveApp == nil {
		return StoreReductionReport{}, ErrInsufficientHistory
	}

	stateJSON := p.liveApp.StateJSON()
	stateHashHex, storeErr := p.content.StoreComponent(stateBlob(stateJSON))
	if storeErr != nil {
		return StoreReductionReport{}, fmt.Errorf("process: store state for reduction: %w", storeErr)
	}

	reduction := contentstore.ProvisionalReduction{
		ReducedCompositionHashHex: p.lastCompositionLogRecordHashHex,
		AppConfigHashHex:          p.appConfigTreeHashHex,
		ElmAppStateHashHex:        stateHashHex,
	}
	if storeErr := p.content.StoreProvisionalReduction(reduction); storeErr != nil {
		return StoreReductionReport{}, fmt.Errorf("process: store provisional reduction: %w", storeErr)
	}

	if p.logger != nil {
		p.logger.Printf("🔄 stored provisional reduction at composition hash %s", reduction.ReducedCompositionHashHex)
	}

	return StoreReductionReport{ReducedCompositionHashHex: reduction.ReducedCompositionHashHex}, nil
}

// StoreReductionReport summarizes the outcome of a snapshot attempt.
type StoreReductionReport struct {
	ReducedCompositionHashHex string
}

// Dispose releases the in-memory application (spec §4.6). Further
// operations on p return ErrDisposed.
func (p *Process) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liveApp = nil
	p.disposed = true
}
