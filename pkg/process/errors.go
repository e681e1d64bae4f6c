// Copyright 2025 Pine Host Project
package process

import "errors"

// Sentinel errors for process supervisor operations.
var (
	// ErrDisposed is returned by any operation attempted after Dispose.
	ErrDisposed = errors.New("process: process has been disposed")

	// ErrInsufficientHistory is returned by restore when the replayed
	// records never establish both an app config and a live application
	// (spec §4.6 step 3).
	ErrInsufficientHistory = errors.New("process: insufficient history to establish a live application")

	// ErrNoPriorApplication is returned when a migrate event is replayed
	// or requested with no application currently live to migrate from.
	ErrNoPriorApplication = errors.New("process: migrate requires a prior live application")

	// ErrRevertTargetNotSeen is returned when a RevertProcessTo event names
	// a record hash that matches no record in the composition log, neither
	// in the current replay nor in a full walk back to genesis.
	ErrRevertTargetNotSeen = errors.New("process: revert target does not match a previously seen record")
)
