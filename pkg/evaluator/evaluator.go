// Copyright 2025 Pine Host Project
//
// Package evaluator implements PineVM: a recursive reducer over the
// Expression tree (spec §4.2) with a function-application cache for
// DecodeAndEvaluate. The evaluator itself is pure — it never touches the
// file store or the network — so it can be exercised directly in tests; its
// only shared mutable state, the application cache and its counters, is
// guarded by an internal mutex.

package evaluator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pinehost/pine-host/pkg/codec"
	"github.com/pinehost/pine-host/pkg/expression"
	"github.com/pinehost/pine-host/pkg/kernel"
	"github.com/pinehost/pine-host/pkg/value"
)

// cacheInsertionThreshold is the minimum wall-clock duration an inner
// DecodeAndEvaluate application must take before its result is cached
// (spec §4.2). Below this, the entry is cheap enough that caching it would
// only waste memory.
const cacheInsertionThreshold = 4 * time.Millisecond

// OverrideFunc is a host-native replacement for a specific decoded function
// value, installed via decodeExpressionOverrides to short-circuit hot
// primitives without going through the generic decode-and-reduce path.
type OverrideFunc func(argument value.Value) (value.Value, error)

// EvalFunc is the shape of the evaluator's core reduction step. overrideEvaluate
// wraps one EvalFunc in another, so instrumentation can observe every
// recursive call.
type EvalFunc func(expr expression.Expression, env value.Value) (value.Value, error)

type cacheKey struct {
	fn  [32]byte
	arg [32]byte
}

// Metrics mirrors the counters named in spec §4.2: cacheLookupCount,
// cacheSize, maxObservedArgListSize. Reads are safe for concurrent use.
type Metrics struct {
	CacheLookupCount       int64
	CacheSize              int64
	MaxObservedArgListSize int64
}

// Evaluator reduces expressions to values. The zero value is not usable;
// construct with New.
type Evaluator struct {
	mu    sync.Mutex
	cache map[cacheKey]value.Value

	decodeExpressionOverrides map[[32]byte]OverrideFunc
	overrideEvaluate          func(EvalFunc) EvalFunc

	cacheLookupCount       int64
	maxObservedArgListSize int64
}

// Option configures an Evaluator at construction time.
type Option func(*Evaluator)

// WithDecodeExpressionOverrides installs host-native replacements for
// specific encoded-function values, keyed by the hash of the function
// value (spec §4.2).
func WithDecodeExpressionOverrides(overrides map[[32]byte]OverrideFunc) Option {
	return func(e *Evaluator) {
		e.decodeExpressionOverrides = overrides
	}
}

// WithOverrideEvaluate installs a wrapper around the default reduction step,
// used for tracing, instrumentation, or alternative reduction strategies
// (spec §4.2).
func WithOverrideEvaluate(wrap func(EvalFunc) EvalFunc) Option {
	return func(e *Evaluator) {
		e.overrideEvaluate = wrap
	}
}

// New constructs an Evaluator with an empty application cache.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		cache: make(map[cacheKey]value.Value),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns a snapshot of the evaluator's counters.
func (e *Evaluator) Metrics() Metrics {
	e.mu.Lock()
	size := int64(len(e.cache))
	e.mu.Unlock()
	return Metrics{
		CacheLookupCount:       atomic.LoadInt64(&e.cacheLookupCount),
		CacheSize:              size,
		MaxObservedArgListSize: atomic.LoadInt64(&e.maxObservedArgListSize),
	}
}

// Evaluate reduces expr against env to a value. Failure modes — decode
// failure, unknown kernel function, non-list where a list is required — are
// all returned as errors; Evaluate never panics on malformed input.
func (e *Evaluator) Evaluate(expr expression.Expression, env value.Value) (value.Value, error) {
	step := e.evaluateStep
	if e.overrideEvaluate != nil {
		step = e.overrideEvaluate(step)
	}
	return step(expr, env)
}

func (e *Evaluator) evaluateStep(expr expression.Expression, env value.Value) (value.Value, error) {
	switch expr.Tag {
	case expression.TagLiteral:
		return expr.Literal, nil

	case expression.TagEnvironment:
		return env, nil

	case expression.TagList:
		items := make([]value.Value, len(expr.Items))
		for i, item := range expr.Items {
			v, err := e.Evaluate(item, env)
			if err != nil {
				return value.Value{}, fmt.Errorf("evaluate list item %d: %w", i, err)
			}
			items[i] = v
		}
		if len(items) > int(atomic.LoadInt64(&e.maxObservedArgListSize)) {
			atomic.StoreInt64(&e.maxObservedArgListSize, int64(len(items)))
		}
		return value.NewList(items...), nil

	case expression.TagConditional:
		cond, err := e.Evaluate(*expr.Condition, env)
		if err != nil {
			return value.Value{}, fmt.Errorf("evaluate conditional condition: %w", err)
		}
		if cond.IsTrue() {
			return e.Evaluate(*expr.IfTrue, env)
		}
		return e.Evaluate(*expr.IfFalse, env)

	case expression.TagKernelApplication:
		arg, err := e.Evaluate(*expr.Argument, env)
		if err != nil {
			return value.Value{}, fmt.Errorf("evaluate kernel application argument: %w", err)
		}
		result, err := kernel.Apply(expr.FunctionName, arg)
		if err != nil {
			return value.Value{}, fmt.Errorf("kernel application %q: %w", expr.FunctionName, err)
		}
		return result, nil

	case expression.TagDecodeAndEvaluate:
		return e.evaluateDecodeAndEvaluate(expr, env)

	case expression.TagStringTag:
		return e.Evaluate(*expr.Tagged, env)

	default:
		return value.Value{}, fmt.Errorf("evaluate: unrecognized expression tag %q", expr.Tag)
	}
}

// evaluateDecodeAndEvaluate implements the six-step algorithm of spec §4.2.
func (e *Evaluator) evaluateDecodeAndEvaluate(expr expression.Expression, env value.Value) (value.Value, error) {
	fnValue, err := e.Evaluate(*expr.DecodeExpr, env)
	if err != nil {
		return value.Value{}, fmt.Errorf("evaluate decode-and-evaluate function expression: %w", err)
	}

	argValue, err := e.Evaluate(*expr.DecodeEnv, env)
	if err != nil {
		return value.Value{}, fmt.Errorf("evaluate decode-and-evaluate environment expression: %w", err)
	}

	fnHash := fnValue.Hash()

	if override, ok := e.decodeExpressionOverrides[fnHash]; ok {
		return override(argValue)
	}

	key := cacheKey{fn: fnHash, arg: argValue.Hash()}

	atomic.AddInt64(&e.cacheLookupCount, 1)
	e.mu.Lock()
	if cached, hit := e.cache[key]; hit {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	fnExpr, err := codec.Decode(fnValue)
	if err != nil {
		return value.Value{}, fmt.Errorf("decode-and-evaluate: decode function value: %w", err)
	}

	start := time.Now()
	result, err := e.Evaluate(fnExpr, argValue)
	elapsed := time.Since(start)
	if err != nil {
		return value.Value{}, fmt.Errorf("decode-and-evaluate: inner evaluation: %w", err)
	}

	if elapsed >= cacheInsertionThreshold {
		e.mu.Lock()
		e.cache[key] = result
		e.mu.Unlock()
	}

	return result, nil
}
