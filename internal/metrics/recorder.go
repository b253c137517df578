package metrics

import "time"

// ResultLabel enumerates step result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// OutcomeLabel enumerates final run outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeNothing  OutcomeLabel = "nothing_to_do"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for planning and running builds.
// Implementations must be safe to call on a nil receiver.
type Recorder interface {
	ObserveDiscoveryDuration(d time.Duration)
	SetInvalidatedProjects(stage string, n int)
	ObserveStepDuration(stage string, d time.Duration)
	IncStepResult(stage string, result ResultLabel)
	IncStepRetry(stage string)
	IncRunOutcome(outcome OutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveDiscoveryDuration(time.Duration)    {}
func (NoopRecorder) SetInvalidatedProjects(string, int)        {}
func (NoopRecorder) ObserveStepDuration(string, time.Duration) {}
func (NoopRecorder) IncStepResult(string, ResultLabel)         {}
func (NoopRecorder) IncStepRetry(string)                       {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
