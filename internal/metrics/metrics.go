// Package metrics collects Prometheus metrics for one pipeline run and optionally
// pushes them to a Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "bankads"

// DefaultJob is the Pushgateway job name.
const DefaultJob = "bankads"

// Recorder holds the collectors for a single run on its own registry, so
// repeated runs in one process never share counters.
type Recorder struct {
	registry *prometheus.Registry

	CreativesDiscovered *prometheus.CounterVec
	DiscoveryErrors     *prometheus.CounterVec
	Items               *prometheus.CounterVec
	OCRCalls            *prometheus.CounterVec
	OCRTokens           prometheus.Counter
	OCRDuration         prometheus.Histogram
	StageDuration       *prometheus.GaugeVec
	Rows                prometheus.Gauge
	LastSuccess         prometheus.Gauge
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		CreativesDiscovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creatives_discovered_total",
			Help:      "Unique image creatives found by discovery.",
		}, []string{"bank"}),
		DiscoveryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_errors_total",
			Help:      "Advertisers whose discovery failed.",
		}, []string{"bank"}),
		Items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Processed creatives by outcome.",
		}, []string{"bank", "outcome"}), // outcome: ok, empty_text, download_failed, classify_failed
		OCRCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_calls_total",
			Help:      "Classification calls by result.",
		}, []string{"result"}), // result: ok, cached, error
		OCRTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_tokens_total",
			Help:      "Tokens billed by the vision model.",
		}),
		OCRDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_duration_seconds",
			Help:      "Wall time of a classification including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 60},
		}),
		StageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		Rows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows in the exported result table.",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

// Registry returns the registry holding this run's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordDiscovery counts the creatives found for a bank, or a failed discovery.
func (r *Recorder) RecordDiscovery(bank string, found int, err error) {
	if err != nil {
		r.DiscoveryErrors.WithLabelValues(bank).Inc()
	}
	r.CreativesDiscovered.WithLabelValues(bank).Add(float64(found))
}

// RecordItem counts one creative outcome.
func (r *Recorder) RecordItem(bank, outcome string) {
	r.Items.WithLabelValues(bank, outcome).Inc()
}

// RecordOCR records one classification.
func (r *Recorder) RecordOCR(d time.Duration, tokens int, cached bool, err error) {
	switch {
	case err != nil:
		r.OCRCalls.WithLabelValues("error").Inc()
	case cached:
		r.OCRCalls.WithLabelValues("cached").Inc()
		return
	default:
		r.OCRCalls.WithLabelValues("ok").Inc()
	}
	r.OCRTokens.Add(float64(tokens))
	r.OCRDuration.Observe(d.Seconds())
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// MarkSuccess records the row count and the completion time.
func (r *Recorder) MarkSuccess(rows int, at time.Time) {
	r.Rows.Set(float64(rows))
	r.LastSuccess.Set(float64(at.Unix()))
}

// Push sends every collector to the Pushgateway at url, replacing the job's group.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = DefaultJob
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
