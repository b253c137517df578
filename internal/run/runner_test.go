package run

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/config"
	"git.home.luguber.info/inful/monobuild/internal/discovery"
	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/retry"
	"git.home.luguber.info/inful/monobuild/internal/revision"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

type staticHistory []revision.Revision

func (h staticHistory) History(context.Context, string) ([]revision.Revision, error) { return h, nil }

type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]int // "project/stage" -> number of failing attempts
}

func (e *recordingExecutor) Execute(_ context.Context, step Step) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := step.Project.Name + "/" + step.Stage.String()
	e.calls = append(e.calls, key)
	if e.fail[key] > 0 {
		e.fail[key]--
		return errors.New("exit status 1")
	}
	return nil
}

func testProjects() []*project.Project {
	a := &project.Project{
		Name:     "a",
		RootPath: "a/",
		Stages: map[stage.Stage]*project.StageConfig{
			stage.Build: {Command: "make"},
			stage.Test:  {Command: "make test"},
		},
	}
	b := &project.Project{
		Name:         "b",
		RootPath:     "b/",
		Stages:       map[stage.Stage]*project.StageConfig{stage.Build: {Command: "make"}},
		Dependencies: map[stage.Stage]sets.Set[string]{stage.Build: sets.New("shared/")},
	}
	return []*project.Project{b, a}
}

func newTestRunner(history staticHistory, store artifact.Store, exec Executor) *Runner {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewRunner(history, store, exec, func() (string, error) { return "r2", nil }).WithLogger(logger)
}

func history() staticHistory {
	return staticHistory{
		revision.New(1, "r1", "a/main.go"),
		revision.New(2, "r2", "shared/lib.go"),
	}
}

func TestRunExecutesAndRecords(t *testing.T) {
	store := artifact.NewMemoryStore()
	exec := &recordingExecutor{}
	projects := testProjects()

	res, err := newTestRunner(history(), store, exec).Run(context.Background(), Request{Projects: projects})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "r2", res.Revision)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"a/build", "b/build", "a/test"}, exec.calls)

	build, ok := res.Stage(stage.Build)
	require.True(t, ok)
	require.Len(t, build.Steps, 2)
	assert.Equal(t, StatusSucceeded, build.Steps[0].Status)
	assert.Equal(t, 1, build.Steps[0].Attempts)
	assert.Equal(t, []string{"shared/lib.go"}, build.Steps[1].ChangedFiles)

	out, err := store.LastOutput(context.Background(), projects[1], stage.Build)
	require.NoError(t, err)
	rev, trusted := artifact.TrustedRevision(out)
	require.True(t, trusted)
	assert.Equal(t, "r2", rev)

	// Everything is recorded at the newest revision, so a second run is a no-op.
	exec.calls = nil
	res, err = newTestRunner(history(), store, exec).Run(context.Background(), Request{Projects: projects})
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
	assert.Empty(t, exec.calls)
}

func TestRunStopsAfterFailingStage(t *testing.T) {
	store := artifact.NewMemoryStore()
	exec := &recordingExecutor{fail: map[string]int{"b/build": 1}}
	projects := testProjects()

	res, err := newTestRunner(history(), store, exec).Run(context.Background(), Request{Projects: projects})
	require.NoError(t, err)
	assert.False(t, res.Success())
	require.Len(t, res.Failed(), 1)
	assert.Equal(t, "b", res.Failed()[0].Project)
	assert.Equal(t, []string{"a/build", "b/build"}, exec.calls)

	test, ok := res.Stage(stage.Test)
	require.True(t, ok)
	require.Len(t, test.Steps, 1)
	assert.Equal(t, StatusSkipped, test.Steps[0].Status)

	out, err := store.LastOutput(context.Background(), projects[0], stage.Build)
	require.NoError(t, err)
	assert.IsType(t, artifact.Failed{}, out)
}

func TestRunRetries(t *testing.T) {
	store := artifact.NewMemoryStore()
	exec := &recordingExecutor{fail: map[string]int{"a/build": 2}}
	policy := retry.NewPolicy(config.RetryBackoffFixed, 1, 1, 2)

	res, err := newTestRunner(history(), store, exec).WithRetryPolicy(policy).
		Run(context.Background(), Request{Projects: testProjects(), Selection: discovery.Selection{Stage: "build"}})
	require.NoError(t, err)
	assert.True(t, res.Success())
	build, _ := res.Stage(stage.Build)
	assert.Equal(t, 3, build.Steps[0].Attempts)
	assert.Len(t, res.Stages, 1)
}

func TestRunDryRunExecutesNothing(t *testing.T) {
	store := artifact.NewMemoryStore()
	exec := &recordingExecutor{}

	res, err := newTestRunner(history(), store, exec).Run(context.Background(), Request{Projects: testProjects(), DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, exec.calls)
	assert.True(t, res.DryRun)
	build, _ := res.Stage(stage.Build)
	assert.Equal(t, StatusPlanned, build.Steps[0].Status)

	out, err := store.LastOutput(context.Background(), testProjects()[0], stage.Build)
	require.NoError(t, err)
	assert.Equal(t, artifact.NotFound{}, out)
}

func TestRunUnknownProjectIsWarning(t *testing.T) {
	exec := &recordingExecutor{}
	res, err := newTestRunner(history(), artifact.NewMemoryStore(), exec).Run(context.Background(),
		Request{Projects: testProjects(), Selection: discovery.Selection{Projects: []string{"a", "ghost"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown projects: [ghost]"}, res.Warnings)
	assert.Equal(t, []string{"a/build", "a/test"}, exec.calls)
	build, _ := res.Stage(stage.Build)
	assert.True(t, build.Steps[0].Forced)
}

func TestRunOrdersRequestedStages(t *testing.T) {
	exec := &recordingExecutor{}
	res, err := newTestRunner(history(), artifact.NewMemoryStore(), exec).Run(context.Background(),
		Request{Projects: testProjects(), Stages: []stage.Stage{stage.Test, stage.Build, stage.Test, "lint"}})
	require.NoError(t, err)
	require.Len(t, res.Stages, 2)
	assert.Equal(t, stage.Build, res.Stages[0].Stage)
	assert.Equal(t, stage.Test, res.Stages[1].Stage)
	assert.Equal(t, []string{"a/build", "b/build", "a/test"}, exec.calls)
}

type cancellingExecutor struct {
	recordingExecutor
	cancel context.CancelFunc
}

func (e *cancellingExecutor) Execute(ctx context.Context, step Step) error {
	e.cancel()
	return e.recordingExecutor.Execute(ctx, step)
}

func TestRunInterruptedIsRuntimeError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &cancellingExecutor{cancel: cancel}

	res, err := newTestRunner(history(), artifact.NewMemoryStore(), exec).Run(ctx, Request{Projects: testProjects()})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 12, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))

	require.NotNil(t, res)
	assert.Equal(t, []string{"a/build"}, exec.calls)
	build, _ := res.Stage(stage.Build)
	assert.Equal(t, StatusSkipped, build.Steps[1].Status)
}

func TestRunStepOutsideProjectStagesFails(t *testing.T) {
	store := artifact.NewMemoryStore()
	exec := &recordingExecutor{}
	r := newTestRunner(history(), store, exec)
	p := testProjects()[0]

	res := r.runStep(context.Background(), r.logger, stage.Deploy, discovery.ProjectExecution{Project: p}, &Result{RunID: "run-1"})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "project does not take part in stage", res.Message)
	assert.Empty(t, exec.calls)

	out, err := store.LastOutput(context.Background(), p, stage.Deploy)
	require.NoError(t, err)
	assert.Equal(t, artifact.NotFound{}, out)
}

type brokenHistory struct{}

func (brokenHistory) History(context.Context, string) ([]revision.Revision, error) {
	return nil, errors.New("no repository")
}

func TestRunHistoryError(t *testing.T) {
	r := NewRunner(brokenHistory{}, artifact.NewMemoryStore(), &recordingExecutor{}, func() (string, error) { return "", nil })
	_, err := r.Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no repository")
}

func TestFromBuildSet(t *testing.T) {
	p := testProjects()[1]
	bs := discovery.BuildSet{
		stage.Test:  {},
		stage.Build: {{Project: p, ChangedFiles: sets.New("a/x")}},
	}
	res := FromBuildSet(bs, "plan-1")
	require.Len(t, res.Stages, 2)
	assert.Equal(t, stage.Build, res.Stages[0].Stage)
	assert.Equal(t, []string{"a/x"}, res.Stages[0].Steps[0].ChangedFiles)
	assert.Equal(t, StatusPlanned, res.Stages[0].Steps[0].Status)
	assert.Empty(t, res.Stages[1].Steps)
	assert.True(t, res.Success())
	assert.False(t, res.IsEmpty())
}
