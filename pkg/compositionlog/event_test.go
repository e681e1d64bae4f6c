package compositionlog

import (
	"encoding/json"
	"testing"
)

// TestEventMarshalsAsOneOfVariant confirms the durable wire shape matches
// spec §6 literally: a single top-level key naming the variant, never a
// flat "kind" field.
func TestEventMarshalsAsOneOfVariant(t *testing.T) {
	event := ApplyFunctionOnElmAppState("add", "blob-hash")

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal into raw map: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected exactly one top-level key, got %d: %s", len(raw), data)
	}
	body, ok := raw["ApplyFunctionOnElmAppState"]
	if !ok {
		t.Fatalf("expected a key named after the kind, got %s", data)
	}

	var payload applyFunctionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload.FunctionName != "add" || payload.BlobRefHashHex != "blob-hash" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEventRoundTripsForEveryKind(t *testing.T) {
	events := []Event{
		UpdateElmAppStateForEvent("blob1"),
		ApplyFunctionOnElmAppState("reset", "blob2"),
		SetElmAppState("value-hash"),
		DeployAppConfigAndInitElmAppState("tree-hash"),
		DeployAppConfigAndMigrateElmAppState("tree-hash-2"),
		RevertProcessTo("record-hash"),
	}

	for _, want := range events {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", want, err)
		}
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != want {
			t.Fatalf("round-trip mismatch: got %+v want %+v (wire: %s)", got, want, data)
		}
	}
}

func TestRecordUsesSpecWireFieldNames(t *testing.T) {
	record := Record{
		ParentHashHex: "parent-hash",
		Event:         SetElmAppState("value-hash"),
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal into raw map: %v", err)
	}
	if _, ok := raw["parentHashBase16"]; !ok {
		t.Fatalf("expected top-level key \"parentHashBase16\", got %s", data)
	}
	if _, ok := raw["compositionEvent"]; !ok {
		t.Fatalf("expected top-level key \"compositionEvent\", got %s", data)
	}
}

func TestEventUnmarshalRejectsMultipleVariantKeys(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"SetElmAppState": {"valueRefHashHex": "a"}, "RevertProcessTo": {"recordHashRefHex": "b"}}`), &e)
	if err == nil {
		t.Fatalf("expected an error unmarshaling an object with two variant keys")
	}
}
