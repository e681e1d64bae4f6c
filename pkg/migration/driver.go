// Copyright 2025 Pine Host Project
//
// Package migration implements the driver that invokes a deployed
// application's three named entry points — init, processEvent, migrate —
// plus arbitrary additional named functions for admin use (spec §4.7).
//
// Compiling a deployed source tree into evaluator-ready form is explicitly
// out of scope (spec §1 Non-goals): a real deployment would lower an Elm
// source tree into a PineVM-compiled artifact, but that compiler is not
// part of this system. Instead, App instances are produced by a Builder
// supplied by the host process — in this repository, the counter
// application under internal/testapp — and the driver's job is limited to
// what spec §4.7 actually describes: serializing arguments to JSON,
// invoking the named function, and deserializing the response.
package migration

import (
	"encoding/json"
	"fmt"

	"github.com/pinehost/pine-host/pkg/contentstore"
)

// Cmds is the response a deployed application emits alongside its new
// state: subscription changes (timer wake requests), HTTP responses to
// dispatch, and task start requests (spec §4.7). Neither the driver nor the
// admin/public server in this repository acts on these; the server only
// returns them as JSON from apply-function-on-db.
type Cmds struct {
	SubscribeToTimer   bool              `json:"subscribeToTimer,omitempty"`
	HTTPResponses      []HTTPResponseCmd `json:"httpResponses,omitempty"`
	StartTasks         []TaskStartCmd    `json:"startTasks,omitempty"`
}

// HTTPResponseCmd is a pending HTTP response a deployed application wants
// dispatched on its behalf.
type HTTPResponseCmd struct {
	RequestID  string `json:"requestId"`
	StatusCode int    `json:"statusCode"`
	BodyBase64 string `json:"bodyBase64"`
}

// TaskStartCmd is a request to start a named background task.
type TaskStartCmd struct {
	TaskID string `json:"taskId"`
	Name   string `json:"name"`
}

// App is a deployed application's live state-shim. Every method serializes
// its arguments to JSON and deserializes its response — the same contract
// spec §4.7 describes for a PineVM-compiled artifact — but in this
// repository App implementations are Go-native (see internal/testapp),
// since lowering Elm source into PineVM trees is out of scope.
type App interface {
	// Init runs the application's init entry point with no arguments.
	Init() (Cmds, error)
	// ProcessEvent runs processEvent(eventJSON, state).
	ProcessEvent(eventJSON string) (Cmds, error)
	// Migrate runs migrate(priorStateJSON) against an application freshly
	// built from a new deployment's tree.
	Migrate(priorStateJSON string) (Cmds, error)
	// ApplyFunction invokes an arbitrary named function exposed by the
	// application, used by the admin "apply function on db" operation.
	ApplyFunction(functionName, argsJSON string) (Cmds, error)
	// StateJSON returns the application's current serialized state.
	StateJSON() string
	// SetStateJSON replaces the application's state wholesale.
	SetStateJSON(stateJSON string) error
}

// Builder constructs a fresh App from a deployed source tree. Supplied by
// the host process; internal/testapp provides the one used by this
// repository's example deployment.
type Builder func(tree contentstore.TreeNode) (App, error)

// Driver centralizes the JSON marshaling and error-wrapping contract spec
// §4.7 describes for invoking an application's named functions.
type Driver struct {
	build Builder
}

// New constructs a Driver using build to produce fresh App instances from
// deployed trees.
func New(build Builder) *Driver {
	return &Driver{build: build}
}

// BuildApp constructs a fresh, uninitialized App from tree.
func (d *Driver) BuildApp(tree contentstore.TreeNode) (App, error) {
	app, err := d.build(tree)
	if err != nil {
		return nil, fmt.Errorf("migration: build app from deployed tree: %w", err)
	}
	return app, nil
}

// Init builds a fresh app from tree and runs its init entry point.
func (d *Driver) Init(tree contentstore.TreeNode) (App, Cmds, error) {
	app, err := d.BuildApp(tree)
	if err != nil {
		return nil, Cmds{}, err
	}
	cmds, err := app.Init()
	if err != nil {
		return nil, Cmds{}, fmt.Errorf("migration: init: %w", err)
	}
	return app, cmds, nil
}

// Migrate builds a fresh app from tree and runs its migrate entry point
// against priorStateJSON.
func (d *Driver) Migrate(tree contentstore.TreeNode, priorStateJSON string) (App, Cmds, error) {
	app, err := d.BuildApp(tree)
	if err != nil {
		return nil, Cmds{}, err
	}
	cmds, err := app.Migrate(priorStateJSON)
	if err != nil {
		return nil, Cmds{}, fmt.Errorf("migration: migrate: %w", err)
	}
	return app, cmds, nil
}

// MarshalArgs serializes v to a JSON string for ApplyFunction invocations.
func MarshalArgs(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("migration: marshal arguments: %w", err)
	}
	return string(data), nil
}

// UnmarshalInto deserializes a JSON string response into dst.
func UnmarshalInto(jsonStr string, dst interface{}) error {
	if err := json.Unmarshal([]byte(jsonStr), dst); err != nil {
		return fmt.Errorf("migration: unmarshal response: %w", err)
	}
	return nil
}
