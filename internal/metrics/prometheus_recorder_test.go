package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveDiscoveryDuration(15 * time.Millisecond)
	pr.SetInvalidatedProjects("build", 3)
	pr.ObserveStepDuration("build", 2*time.Second)
	pr.IncStepResult("build", ResultSuccess)
	pr.IncStepRetry("build")
	pr.IncRunOutcome(OutcomeSuccess)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"monobuild_discovery_duration_seconds",
		"monobuild_invalidated_projects",
		"monobuild_step_duration_seconds",
		"monobuild_step_results_total",
		"monobuild_step_retries_total",
		"monobuild_run_outcomes_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveDiscoveryDuration(time.Second)
		pr.SetInvalidatedProjects("test", 1)
		pr.IncStepResult("test", ResultFailed)
		pr.IncRunOutcome(OutcomeFailed)
	})
	assert.NoError(t, pr.WriteTextfile("ignored"))
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.SetInvalidatedProjects("deploy", 2)

	path := filepath.Join(t.TempDir(), "nested", "monobuild.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `monobuild_invalidated_projects{stage="deploy"} 2`)
}
