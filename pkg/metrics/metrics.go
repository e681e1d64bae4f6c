// Copyright 2025 Pine Host Project
//
// Package metrics exposes the evaluator and process counters named in
// spec §4.2 and §4.6 as a Prometheus registry, served at GET /metrics
// (SPEC_FULL §4.8).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinehost/pine-host/pkg/evaluator"
)

// Registry owns the Prometheus collectors pine-host exposes. Evaluator
// counters are sourced live via GaugeFunc rather than pushed, since the
// evaluator is the single source of truth for its own counts.
type Registry struct {
	registry *prometheus.Registry

	cacheLookupCount       prometheus.GaugeFunc
	cacheSize              prometheus.GaugeFunc
	maxObservedArgListSize prometheus.GaugeFunc

	ApplyFunctionTotal   *prometheus.CounterVec
	DeployTotal          *prometheus.CounterVec
	ReductionSnapshots   prometheus.Counter
	ReductionFailures    prometheus.Counter
}

// New builds a Registry whose gauges read live from eval.
func New(eval *evaluator.Evaluator) *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.cacheLookupCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pinehost",
		Subsystem: "evaluator",
		Name:      "cache_lookup_count",
		Help:      "Total DecodeAndEvaluate cache lookups performed by the evaluator.",
	}, func() float64 { return float64(eval.Metrics().CacheLookupCount) })

	r.cacheSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pinehost",
		Subsystem: "evaluator",
		Name:      "cache_size",
		Help:      "Current number of entries in the evaluator's application cache.",
	}, func() float64 { return float64(eval.Metrics().CacheSize) })

	r.maxObservedArgListSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pinehost",
		Subsystem: "evaluator",
		Name:      "max_observed_arg_list_size",
		Help:      "Largest list size produced by evaluating a List expression.",
	}, func() float64 { return float64(eval.Metrics().MaxObservedArgListSize) })

	r.ApplyFunctionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinehost",
		Subsystem: "process",
		Name:      "apply_function_total",
		Help:      "Count of applyFunctionOnDb invocations, by function name and outcome.",
	}, []string{"function_name", "outcome"})

	r.DeployTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinehost",
		Subsystem: "process",
		Name:      "deploy_total",
		Help:      "Count of deploy-and-init / deploy-and-migrate attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})

	r.ReductionSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pinehost",
		Subsystem: "process",
		Name:      "reduction_snapshots_total",
		Help:      "Count of provisional reduction snapshots successfully stored.",
	})

	r.ReductionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pinehost",
		Subsystem: "process",
		Name:      "reduction_snapshot_failures_total",
		Help:      "Count of provisional reduction snapshot attempts that failed.",
	})

	r.registry.MustRegister(
		r.cacheLookupCount,
		r.cacheSize,
		r.maxObservedArgListSize,
		r.ApplyFunctionTotal,
		r.DeployTotal,
		r.ReductionSnapshots,
		r.ReductionFailures,
	)
	return r
}

// Handler returns the promhttp handler serving this registry's exposition
// format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordReductionSnapshot satisfies pkg/process's ReductionRecorder,
// letting a *Process report the outcome of each reduction-snapshot attempt
// without importing prometheus itself.
func (r *Registry) RecordReductionSnapshot(success bool) {
	if success {
		r.ReductionSnapshots.Inc()
		return
	}
	r.ReductionFailures.Inc()
}
