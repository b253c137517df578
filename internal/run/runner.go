package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/discovery"
	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/metrics"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/retry"
	"git.home.luguber.info/inful/monobuild/internal/revision"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// Request selects what a run executes.
type Request struct {
	Projects  []*project.Project
	Branch    string
	Stages    []stage.Stage // defaults to stage.All()
	Selection discovery.Selection
	DryRun    bool
}

// Runner executes build sets.
type Runner struct {
	source   revision.Source
	store    artifact.Store
	executor Executor
	head     func() (string, error)
	resolver *discovery.Resolver
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
	newID    func() string
}

// NewRunner creates a runner. head returns the commit hash recorded as the
// revision of produced artifacts.
func NewRunner(source revision.Source, store artifact.Store, executor Executor, head func() (string, error)) *Runner {
	return &Runner{
		source:   source,
		store:    store,
		executor: executor,
		head:     head,
		resolver: discovery.NewResolver(),
		policy:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
}

// WithLogger sets the logger for the runner and its resolver.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	if logger != nil {
		r.logger = logger
		r.resolver.WithLogger(logger)
	}
	return r
}

// WithRecorder sets the metrics recorder.
func (r *Runner) WithRecorder(recorder metrics.Recorder) *Runner {
	r.recorder = metrics.OrNoop(recorder)
	r.resolver.WithRecorder(r.recorder)
	return r
}

// WithRetryPolicy sets the retry policy for failing commands.
func (r *Runner) WithRetryPolicy(p retry.Policy) *Runner {
	r.policy = p
	return r
}

// Run resolves and executes every stage of req in pipeline order.
//
// Project selection problems are reported in Result.Warnings; collaborator
// errors abort the run. A cancelled context stops the run and is returned as a
// runtime error wrapping the context error.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: r.newID(), Branch: req.Branch, DryRun: req.DryRun, Started: time.Now()}
	logger := r.logger.With(logfields.RunID(res.RunID))

	history, err := r.source.History(ctx, req.Branch)
	if err != nil {
		return nil, fmt.Errorf("read revision history: %w", err)
	}
	if res.Revision, err = r.head(); err != nil {
		return nil, fmt.Errorf("resolve head revision: %w", err)
	}

	stages := pipelineOrder(req.Stages)

	failed := false
	for _, s := range stages {
		sel := req.Selection
		if sel.Stage != "" {
			if parsed, perr := stage.Parse(sel.Stage); perr != nil || parsed != s {
				continue
			}
		}
		sel.Stage = s.String()

		bs, err := r.resolver.Resolve(ctx, r.store, req.Projects, history, []stage.Stage{s}, sel)
		if err != nil {
			if !errors.Is(err, discovery.ErrConfigurationInvalid) {
				return nil, err
			}
			if len(res.Warnings) == 0 {
				logger.Warn("Project selection is incomplete", logfields.Error(err))
				res.Warnings = append(res.Warnings, fmt.Sprintf("unknown projects: %v", discovery.MissingProjects(err)))
			}
		}
		executions, ok := bs[s]
		if !ok {
			continue
		}

		switch {
		case req.DryRun:
			res.Stages = append(res.Stages, stageWith(s, executions, StatusPlanned))
		case failed || ctx.Err() != nil:
			res.Stages = append(res.Stages, stageWith(s, executions, StatusSkipped))
			for range executions {
				r.recorder.IncStepResult(s.String(), metrics.ResultSkipped)
			}
		default:
			sr := r.runStage(ctx, logger, s, executions, res)
			res.Stages = append(res.Stages, sr)
			for _, step := range sr.Steps {
				if step.Status == StatusFailed {
					failed = true
				}
			}
		}
	}
	res.Finished = time.Now()

	r.recorder.IncRunOutcome(outcome(ctx, res))
	logger.Info("Run finished",
		slog.Bool("success", res.Success()),
		logfields.DurationMS(float64(res.Finished.Sub(res.Started).Milliseconds())))
	if err := ctx.Err(); err != nil {
		return res, ferrors.RuntimeError("run interrupted").WithCause(err).Build()
	}
	return res, nil
}

// pipelineOrder sorts stages into pipeline order and drops unknown ones.
func pipelineOrder(stages []stage.Stage) []stage.Stage {
	if len(stages) == 0 {
		return stage.All()
	}
	ordered := make([]stage.Stage, 0, len(stages))
	for _, s := range stages {
		if s.Index() >= 0 && !slices.Contains(ordered, s) {
			ordered = append(ordered, s)
		}
	}
	slices.SortFunc(ordered, func(a, b stage.Stage) int { return a.Index() - b.Index() })
	return ordered
}

func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, s stage.Stage, executions []discovery.ProjectExecution, res *Result) StageResult {
	sr := StageResult{Stage: s, Steps: make([]StepResult, 0, len(executions))}
	logger.Info("Running stage", logfields.Stage(s.String()), logfields.Count(len(executions)))

	for _, e := range executions {
		if ctx.Err() != nil {
			sr.Steps = append(sr.Steps, planned(s, e, StatusSkipped))
			continue
		}
		sr.Steps = append(sr.Steps, r.runStep(ctx, logger, s, e, res))
	}
	return sr
}

func (r *Runner) runStep(ctx context.Context, logger *slog.Logger, s stage.Stage, e discovery.ProjectExecution, res *Result) StepResult {
	result := planned(s, e, StatusSucceeded)
	cfg, ok := e.Project.ForStage(s)
	if !ok {
		err := ferrors.InternalError("project does not take part in stage").
			WithContext("project", e.Name()).
			WithContext("stage", s.String()).
			Build()
		logger.Error("Refusing to run step", logfields.Project(e.Name()), logfields.Stage(s.String()), logfields.Error(err))
		result.Status = StatusFailed
		result.Message = message(err)
		r.recorder.IncStepResult(s.String(), metrics.ResultFailed)
		return result
	}
	step := Step{
		RunID:        res.RunID,
		Revision:     res.Revision,
		Project:      e.Project,
		Stage:        s,
		Config:       cfg,
		ChangedFiles: result.ChangedFiles,
	}
	log := logger.With(logfields.Project(e.Name()), logfields.Stage(s.String()))

	start := time.Now()
	err := r.policy.Do(ctx, func(attempt int) error {
		result.Attempts = attempt
		return r.executor.Execute(ctx, step)
	}, func(n int, err error, delay time.Duration) {
		r.recorder.IncStepRetry(s.String())
		log.Warn("Step failed, retrying", slog.Int("retry", n), slog.Duration("delay", delay), logfields.Error(err))
	})
	result.Duration = time.Since(start)
	r.recorder.ObserveStepDuration(s.String(), result.Duration)

	var out artifact.Output
	if err != nil {
		result.Status = StatusFailed
		result.Message = message(err)
		out = artifact.Failed{Message: result.Message}
		r.recorder.IncStepResult(s.String(), metrics.ResultFailed)
		log.Error("Step failed", logfields.Error(err))
	} else {
		out = artifact.Succeeded{
			Message: "succeeded",
			Artifact: &artifact.Artifact{
				Revision: res.Revision,
				Type:     artifactTypeFor(s),
				Spec:     map[string]string{"run_id": res.RunID, "step": stepName(cfg)},
			},
		}
		r.recorder.IncStepResult(s.String(), metrics.ResultSuccess)
		log.Info("Step succeeded", logfields.DurationMS(float64(result.Duration.Milliseconds())))
	}

	// Recording must not be lost to a cancelled run.
	if rerr := r.store.Record(context.WithoutCancel(ctx), e.Project, s, out); rerr != nil {
		log.Error("Failed to record step output", logfields.Error(rerr))
		if result.Status == StatusSucceeded {
			result.Status = StatusFailed
			result.Message = "recording output failed: " + message(rerr)
		}
	}
	return result
}

func message(err error) string {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.Message()
	}
	return err.Error()
}

func stepName(cfg *project.StageConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.Step
}

func artifactTypeFor(s stage.Stage) artifact.ArtifactType {
	switch s {
	case stage.Build:
		return artifact.TypeBuildArtifact
	case stage.Test:
		return artifact.TypeJUnitTests
	case stage.Deploy:
		return artifact.TypeDeployedApp
	default:
		return artifact.TypeNone
	}
}

func outcome(ctx context.Context, res *Result) metrics.OutcomeLabel {
	switch {
	case ctx.Err() != nil:
		return metrics.OutcomeCanceled
	case !res.Success():
		return metrics.OutcomeFailed
	case res.IsEmpty():
		return metrics.OutcomeNothing
	default:
		return metrics.OutcomeSuccess
	}
}
