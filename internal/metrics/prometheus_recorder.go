package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "monobuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg               *prom.Registry
	discoveryDuration prom.Histogram
	invalidated       *prom.GaugeVec
	stepDuration      *prom.HistogramVec
	stepResults       *prom.CounterVec
	stepRetries       *prom.CounterVec
	runOutcome        *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.discoveryDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "discovery_duration_seconds",
		Help:      "Time spent resolving the build set",
		Buckets:   prom.DefBuckets,
	})
	pr.invalidated = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "invalidated_projects",
		Help:      "Projects scheduled for a stage by the last resolution",
	}, []string{"stage"})
	pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Duration of individual project steps",
		Buckets:   prom.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
	pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "step_results_total",
		Help:      "Step result counts by outcome",
	}, []string{"stage", "result"})
	pr.stepRetries = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "step_retries_total",
		Help:      "Step retries after a failed attempt",
	}, []string{"stage"})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "run_outcomes_total",
		Help:      "Run outcomes by final status",
	}, []string{"outcome"})
	reg.MustRegister(pr.discoveryDuration, pr.invalidated, pr.stepDuration, pr.stepResults, pr.stepRetries, pr.runOutcome)
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.reg
}

func (p *PrometheusRecorder) ObserveDiscoveryDuration(d time.Duration) {
	if p == nil || p.discoveryDuration == nil {
		return
	}
	p.discoveryDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetInvalidatedProjects(stage string, n int) {
	if p == nil || p.invalidated == nil {
		return
	}
	p.invalidated.WithLabelValues(stage).Set(float64(n))
}

func (p *PrometheusRecorder) ObserveStepDuration(stage string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(stage string, result ResultLabel) {
	if p == nil || p.stepResults == nil {
		return
	}
	p.stepResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncStepRetry(stage string) {
	if p == nil || p.stepRetries == nil {
		return
	}
	p.stepRetries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

// WriteTextfile writes the recorder's metrics to path in the text exposition
// format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil {
		return nil
	}
	return WriteTextfile(p.reg, path)
}

// WriteTextfile writes everything gathered from g to path. The parent
// directory is created if missing.
func WriteTextfile(g prom.Gatherer, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
