// Copyright 2025 Pine Host Project
//
// Package testapp provides the example deployed application used by this
// repository's integration tests and local demos (spec §8 scenario 1): a
// counter whose state is a single integer. processEvent adds its argument
// to the running total; migrate multiplies the prior state by ten, as a
// minimal stand-in for the "deploy-then-migrate" scenario (spec §8
// scenario 5) — that scenario's illustrative app shapes its state as
// {n: ...}, but since compiling a real deployed source tree is out of
// scope (spec §1 Non-goals), this fixture keeps the plain-integer state of
// scenario 1 and reuses its multiply-by-ten migration behavior rather than
// introducing a second wrapper shape.
package testapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/migration"
)

// CounterApp is a migration.App whose entire state is an int64 total.
type CounterApp struct {
	mu    sync.Mutex
	total int64
}

// NewCounterApp constructs a counter app at zero.
func NewCounterApp() *CounterApp {
	return &CounterApp{}
}

// Build is a migration.Builder producing fresh CounterApp instances. The
// deployed tree's contents are not inspected — lowering a source tree into
// an evaluator-ready artifact is out of scope (spec §1) — so any tree
// deploys the same fixture application.
func Build(_ contentstore.TreeNode) (migration.App, error) {
	return NewCounterApp(), nil
}

// Init resets the counter to zero.
func (c *CounterApp) Init() (migration.Cmds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = 0
	return migration.Cmds{}, nil
}

// ProcessEvent adds the JSON-encoded integer delta in eventJSON to the
// running total.
func (c *CounterApp) ProcessEvent(eventJSON string) (migration.Cmds, error) {
	var delta int64
	if err := json.Unmarshal([]byte(eventJSON), &delta); err != nil {
		return migration.Cmds{}, fmt.Errorf("testapp: processEvent: expected a JSON integer, got %q: %w", eventJSON, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += delta
	return migration.Cmds{}, nil
}

// Migrate sets this app's state to ten times the prior deployment's state.
func (c *CounterApp) Migrate(priorStateJSON string) (migration.Cmds, error) {
	var priorTotal int64
	if err := json.Unmarshal([]byte(priorStateJSON), &priorTotal); err != nil {
		return migration.Cmds{}, fmt.Errorf("testapp: migrate: expected a JSON integer, got %q: %w", priorStateJSON, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = priorTotal * 10
	return migration.Cmds{}, nil
}

// ApplyFunction supports two admin-invokable named functions: "add" (adds
// its integer argument to the total) and "reset" (zeroes the total).
func (c *CounterApp) ApplyFunction(functionName, argsJSON string) (migration.Cmds, error) {
	switch functionName {
	case "add":
		var delta int64
		if err := json.Unmarshal([]byte(argsJSON), &delta); err != nil {
			return migration.Cmds{}, fmt.Errorf("testapp: add: expected a JSON integer argument: %w", err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.total += delta
		return migration.Cmds{}, nil

	case "reset":
		c.mu.Lock()
		defer c.mu.Unlock()
		c.total = 0
		return migration.Cmds{}, nil

	default:
		return migration.Cmds{}, fmt.Errorf("testapp: unknown function %q", functionName)
	}
}

// StateJSON returns the counter's current total as a JSON integer.
func (c *CounterApp) StateJSON() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strconv.FormatInt(c.total, 10)
}

// SetStateJSON replaces the total from a JSON integer.
func (c *CounterApp) SetStateJSON(stateJSON string) error {
	var total int64
	if err := json.Unmarshal([]byte(stateJSON), &total); err != nil {
		return fmt.Errorf("testapp: setStateJSON: expected a JSON integer, got %q: %w", stateJSON, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = total
	return nil
}
