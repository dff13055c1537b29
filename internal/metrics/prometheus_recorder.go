package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	stageDuration  *prom.HistogramVec
	cycleDuration  prom.Histogram
	stageResults   *prom.CounterVec
	cycleOutcome   *prom.CounterVec
	publishedDocs  prom.Gauge
	writeBacks     *prom.CounterVec
	renderFailures prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "intrahub",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual sync cycle stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.cycleDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "intrahub",
			Name:      "cycle_duration_seconds",
			Help:      "Total sync cycle duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "intrahub",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.cycleOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "intrahub",
			Name:      "cycle_outcomes_total",
			Help:      "Sync cycle outcomes by final status",
		}, []string{"outcome"})
		pr.publishedDocs = prom.NewGauge(prom.GaugeOpts{
			Namespace: "intrahub",
			Name:      "published_documents",
			Help:      "Number of published documents after the last cycle",
		})
		pr.writeBacks = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "intrahub",
			Name:      "writeback_results_total",
			Help:      "ID write-back results by success/failure",
		}, []string{"result"})
		pr.renderFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "intrahub",
			Name:      "render_failures_total",
			Help:      "Blocks replaced by a render placeholder",
		})
		reg.MustRegister(pr.stageDuration, pr.cycleDuration, pr.stageResults, pr.cycleOutcome, pr.publishedDocs, pr.writeBacks, pr.renderFailures)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil || p.cycleDuration == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome string) {
	if p == nil || p.cycleOutcome == nil {
		return
	}
	p.cycleOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetPublishedDocuments(n int) {
	if p == nil || p.publishedDocs == nil {
		return
	}
	p.publishedDocs.Set(float64(n))
}

func (p *PrometheusRecorder) IncWriteBackResult(success bool) {
	if p == nil || p.writeBacks == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.writeBacks.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncRenderFailures(n int) {
	if p == nil || p.renderFailures == nil || n <= 0 {
		return
	}
	p.renderFailures.Add(float64(n))
}
