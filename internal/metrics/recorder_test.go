package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopRecorder{}, OrNoop(nil))

	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, OrNoop(pr))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.ObserveDiscoveryDuration(time.Second)
		r.SetInvalidatedProjects("build", 4)
		r.ObserveStepDuration("build", time.Second)
		r.IncStepResult("build", ResultSkipped)
		r.IncStepRetry("build")
		r.IncRunOutcome(OutcomeNothing)
	})
}
