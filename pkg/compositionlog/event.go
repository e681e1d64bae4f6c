// Copyright 2025 Pine Host Project
//
// Package compositionlog implements the append-only, parent-hash-linked
// event log described in spec §3/§4.5: every mutation of a deployed
// application's state is recorded as a CompositionEvent, chained to its
// predecessor by hash, so the full history of a process can be replayed
// from genesis or from the nearest provisional reduction.
package compositionlog

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the six CompositionEvent cases (spec §3). Exactly one
// ref field on Event is populated per Kind — Go has no native sum type, so
// this mirrors the Tag-plus-fields convention used by pkg/expression in
// memory, but on the wire (spec §6) an Event is a one-of object keyed by
// its Kind name: {"UpdateElmAppStateForEvent": {"blobRefHashHex": "…"}}.
type Kind string

const (
	KindUpdateElmAppStateForEvent            Kind = "UpdateElmAppStateForEvent"
	KindApplyFunctionOnElmAppState           Kind = "ApplyFunctionOnElmAppState"
	KindSetElmAppState                       Kind = "SetElmAppState"
	KindDeployAppConfigAndInitElmAppState    Kind = "DeployAppConfigAndInitElmAppState"
	KindDeployAppConfigAndMigrateElmAppState Kind = "DeployAppConfigAndMigrateElmAppState"
	KindRevertProcessTo                      Kind = "RevertProcessTo"
)

// Event is a single CompositionEvent. In memory, exactly one ref field is
// populated per Kind (the Tag-plus-fields convention pkg/expression also
// uses). On the wire it marshals/unmarshals as a one-of object keyed by
// Kind name, per spec §6's durable format — never as a flat "kind" field
// alongside optional ref fields.
type Event struct {
	Kind Kind

	// BlobRefHashHex carries the serialized event (UpdateElmAppStateForEvent)
	// or the named-function invocation record (ApplyFunctionOnElmAppState).
	BlobRefHashHex string

	// ValueRefHashHex carries the replacement state (SetElmAppState).
	ValueRefHashHex string

	// TreeRefHashHex carries the deployed source tree
	// (DeployAppConfigAndInitElmAppState / DeployAppConfigAndMigrateElmAppState).
	TreeRefHashHex string

	// RecordHashRefHex carries the logical pointer to an earlier log record
	// (RevertProcessTo).
	RecordHashRefHex string

	// FunctionName names the function invoked by ApplyFunctionOnElmAppState.
	FunctionName string
}

// blobRefPayload is the wire shape for variants carrying only a blob ref.
type blobRefPayload struct {
	BlobRefHashHex string `json:"blobRefHashHex"`
}

// valueRefPayload is the wire shape for SetElmAppState.
type valueRefPayload struct {
	ValueRefHashHex string `json:"valueRefHashHex"`
}

// treeRefPayload is the wire shape for the deploy variants.
type treeRefPayload struct {
	TreeRefHashHex string `json:"treeRefHashHex"`
}

// recordHashRefPayload is the wire shape for RevertProcessTo.
type recordHashRefPayload struct {
	RecordHashRefHex string `json:"recordHashRefHex"`
}

// applyFunctionPayload is the wire shape for ApplyFunctionOnElmAppState.
type applyFunctionPayload struct {
	FunctionName   string `json:"functionName"`
	BlobRefHashHex string `json:"blobRefHashHex"`
}

// MarshalJSON encodes Event as the one-of object spec §6 requires:
// {"<Kind>": {<variant fields>}}.
func (e Event) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Kind {
	case KindUpdateElmAppStateForEvent:
		payload = blobRefPayload{BlobRefHashHex: e.BlobRefHashHex}
	case KindApplyFunctionOnElmAppState:
		payload = applyFunctionPayload{FunctionName: e.FunctionName, BlobRefHashHex: e.BlobRefHashHex}
	case KindSetElmAppState:
		payload = valueRefPayload{ValueRefHashHex: e.ValueRefHashHex}
	case KindDeployAppConfigAndInitElmAppState, KindDeployAppConfigAndMigrateElmAppState:
		payload = treeRefPayload{TreeRefHashHex: e.TreeRefHashHex}
	case KindRevertProcessTo:
		payload = recordHashRefPayload{RecordHashRefHex: e.RecordHashRefHex}
	default:
		return nil, fmt.Errorf("compositionlog: marshal: unrecognized event kind %q", e.Kind)
	}
	return json.Marshal(map[string]any{string(e.Kind): payload})
}

// UnmarshalJSON decodes a one-of {"<Kind>": {<variant fields>}} object back
// into Event. Exactly one top-level key is required.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("compositionlog: unmarshal event: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("compositionlog: unmarshal event: expected exactly one variant key, got %d", len(raw))
	}

	for k, body := range raw {
		kind := Kind(k)
		switch kind {
		case KindUpdateElmAppStateForEvent:
			var p blobRefPayload
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("compositionlog: unmarshal %s: %w", kind, err)
			}
			*e = Event{Kind: kind, BlobRefHashHex: p.BlobRefHashHex}
		case KindApplyFunctionOnElmAppState:
			var p applyFunctionPayload
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("compositionlog: unmarshal %s: %w", kind, err)
			}
			*e = Event{Kind: kind, FunctionName: p.FunctionName, BlobRefHashHex: p.BlobRefHashHex}
		case KindSetElmAppState:
			var p valueRefPayload
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("compositionlog: unmarshal %s: %w", kind, err)
			}
			*e = Event{Kind: kind, ValueRefHashHex: p.ValueRefHashHex}
		case KindDeployAppConfigAndInitElmAppState, KindDeployAppConfigAndMigrateElmAppState:
			var p treeRefPayload
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("compositionlog: unmarshal %s: %w", kind, err)
			}
			*e = Event{Kind: kind, TreeRefHashHex: p.TreeRefHashHex}
		case KindRevertProcessTo:
			var p recordHashRefPayload
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("compositionlog: unmarshal %s: %w", kind, err)
			}
			*e = Event{Kind: kind, RecordHashRefHex: p.RecordHashRefHex}
		default:
			return fmt.Errorf("compositionlog: unmarshal event: unrecognized kind %q", kind)
		}
	}
	return nil
}

// UpdateElmAppStateForEvent builds an event carrying a serialized
// application event.
func UpdateElmAppStateForEvent(blobRefHashHex string) Event {
	return Event{Kind: KindUpdateElmAppStateForEvent, BlobRefHashHex: blobRefHashHex}
}

// ApplyFunctionOnElmAppState builds an event recording a named-function
// invocation on the live state.
func ApplyFunctionOnElmAppState(functionName, blobRefHashHex string) Event {
	return Event{Kind: KindApplyFunctionOnElmAppState, FunctionName: functionName, BlobRefHashHex: blobRefHashHex}
}

// SetElmAppState builds an event that replaces state wholesale.
func SetElmAppState(valueRefHashHex string) Event {
	return Event{Kind: KindSetElmAppState, ValueRefHashHex: valueRefHashHex}
}

// DeployAppConfigAndInitElmAppState builds an event deploying a new source
// tree and running its init.
func DeployAppConfigAndInitElmAppState(treeRefHashHex string) Event {
	return Event{Kind: KindDeployAppConfigAndInitElmAppState, TreeRefHashHex: treeRefHashHex}
}

// DeployAppConfigAndMigrateElmAppState builds an event deploying a new
// source tree and running its migrate against the prior state.
func DeployAppConfigAndMigrateElmAppState(treeRefHashHex string) Event {
	return Event{Kind: KindDeployAppConfigAndMigrateElmAppState, TreeRefHashHex: treeRefHashHex}
}

// RevertProcessTo builds an event that rewinds the live state to what it was
// right after an earlier record.
func RevertProcessTo(recordHashRefHex string) Event {
	return Event{Kind: KindRevertProcessTo, RecordHashRefHex: recordHashRefHex}
}
