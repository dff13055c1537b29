package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for sync cycle metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All
// methods must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveCycleDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncCycleOutcome(outcome string) // outcome: success|warning|failed|canceled
	SetPublishedDocuments(n int)
	IncWriteBackResult(success bool)
	IncRenderFailures(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics
// are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveCycleDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncCycleOutcome(string)                     {}
func (NoopRecorder) SetPublishedDocuments(int)                  {}
func (NoopRecorder) IncWriteBackResult(bool)                    {}
func (NoopRecorder) IncRenderFailures(int)                      {}
