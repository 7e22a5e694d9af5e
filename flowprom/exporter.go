// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package flowprom exports the lifecycle of flow runs as Prometheus
// metrics.
package flowprom

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"vawter.tech/flow"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DurationBuckets defaults to [prom.DefBuckets].
	DurationBuckets []float64
}

// Exporter adapts [flow.Observer] to Prometheus collectors. A nil
// Exporter discards all observations.
type Exporter struct {
	operationDurationSeconds *prom.HistogramVec
	operationsStartedTotal   *prom.CounterVec
	operationsTotal          *prom.CounterVec
	runDurationSeconds       *prom.HistogramVec
	runsTotal                *prom.CounterVec
}

var _ flow.Observer = (*Exporter)(nil)

// NewExporter creates and registers the collectors. If the collectors
// have already been registered, for example by another Exporter with
// the same namespace, the existing collectors are shared.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	if namespace == "" {
		namespace = "flow"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	opDuration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Time from operation launch until its callback fired.",
		Buckets:   buckets,
	}, []string{"run", "kind", "status"})
	opStarted := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "operations_started_total",
		Help:      "Total number of launched operations.",
	}, []string{"run", "kind"})
	ops := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of finished operations.",
	}, []string{"run", "kind", "status"})
	runDuration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Time from run creation until its completion callback.",
		Buckets:   buckets,
	}, []string{"run", "kind"})
	runs := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of finished runs.",
	}, []string{"run", "kind", "outcome"})

	var err error
	if opDuration, err = registerCollector(reg, opDuration); err != nil {
		return nil, err
	}
	if opStarted, err = registerCollector(reg, opStarted); err != nil {
		return nil, err
	}
	if ops, err = registerCollector(reg, ops); err != nil {
		return nil, err
	}
	if runDuration, err = registerCollector(reg, runDuration); err != nil {
		return nil, err
	}
	if runs, err = registerCollector(reg, runs); err != nil {
		return nil, err
	}

	return &Exporter{
		operationDurationSeconds: opDuration,
		operationsStartedTotal:   opStarted,
		operationsTotal:          ops,
		runDurationSeconds:       runDuration,
		runsTotal:                runs,
	}, nil
}

// OperationStarted implements [flow.Observer].
func (e *Exporter) OperationStarted(run string, kind flow.Kind, _ int) {
	if e == nil {
		return
	}
	e.operationsStartedTotal.WithLabelValues(normalizeLabel(run, "unknown"), kind.String()).Inc()
}

// OperationFinished implements [flow.Observer].
func (e *Exporter) OperationFinished(
	run string, kind flow.Kind, _ int, status flow.Status, elapsed time.Duration,
) {
	if e == nil {
		return
	}
	labels := []string{normalizeLabel(run, "unknown"), kind.String(), status.String()}
	e.operationsTotal.WithLabelValues(labels...).Inc()
	e.operationDurationSeconds.WithLabelValues(labels...).Observe(elapsed.Seconds())
}

// RunFinished implements [flow.Observer].
func (e *Exporter) RunFinished(run string, kind flow.Kind, _, failed int, elapsed time.Duration) {
	if e == nil {
		return
	}
	outcome := "ok"
	if failed > 0 {
		outcome = "fail"
	}
	name := normalizeLabel(run, "unknown")
	e.runsTotal.WithLabelValues(name, kind.String(), outcome).Inc()
	e.runDurationSeconds.WithLabelValues(name, kind.String()).Observe(elapsed.Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegistered prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		existing, ok := alreadyRegistered.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
