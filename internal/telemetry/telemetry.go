// Package telemetry exports samples, rule state and evaluation timings as
// Prometheus metrics.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nvidiawatch"

// Metrics owns a dedicated registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	MetricValue        *prometheus.GaugeVec
	SamplesTotal       *prometheus.CounterVec
	SampleErrorsTotal  prometheus.Counter
	RuleActive         *prometheus.GaugeVec
	TransitionsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	RulesEvaluated     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MetricValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "metric_value",
				Help:      "Most recent sampled value per GPU metric",
			},
			[]string{"metric"},
		),
		SamplesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_total",
				Help:      "Total number of samples recorded per metric",
			},
			[]string{"metric"},
		),
		SampleErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sample_errors_total",
				Help:      "Total number of failed GPU sampling attempts",
			},
		),
		RuleActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rule_active",
				Help:      "Whether an alert rule is currently raised (1) or cleared (0)",
			},
			[]string{"rule", "severity"},
		),
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of alert transitions",
			},
			[]string{"rule", "state"},
		),
		EvaluationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Time spent evaluating all rules once",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
		),
		RulesEvaluated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules",
				Help:      "Number of rules evaluated per round",
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InitRules exposes every rule, raised if it is named in active and cleared
// otherwise.
func (m *Metrics) InitRules(rules []watch.Rule, active []string) {
	raised := make(map[string]struct{}, len(active))
	for _, name := range active {
		raised[name] = struct{}{}
	}

	for _, r := range rules {
		value := 0.0
		if _, ok := raised[r.Name]; ok {
			value = 1
		}
		m.RuleActive.WithLabelValues(r.Name, string(r.Severity)).Set(value)
	}
}

func (m *Metrics) ObserveSample(metric string, value int64) {
	m.MetricValue.WithLabelValues(metric).Set(float64(value))
	m.SamplesTotal.WithLabelValues(metric).Inc()
}

func (m *Metrics) ObserveSampleError() {
	m.SampleErrorsTotal.Inc()
}

// ObserveEvaluation implements watch.Observer.
func (m *Metrics) ObserveEvaluation(d time.Duration, rules int) {
	m.EvaluationDuration.Observe(d.Seconds())
	m.RulesEvaluated.Set(float64(rules))
}

// Emit implements watch.Sink.
func (m *Metrics) Emit(_ context.Context, t watch.Transition) error {
	active := 0.0
	if t.State == watch.StateRaised {
		active = 1
	}
	m.RuleActive.WithLabelValues(t.Rule, string(t.Severity)).Set(active)
	m.TransitionsTotal.WithLabelValues(t.Rule, string(t.State)).Inc()
	return nil
}
