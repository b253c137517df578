package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/metrics"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/revision"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// Selection narrows what a run considers.
type Selection struct {
	// BuildAll schedules every participating project regardless of history.
	BuildAll bool
	// Projects, when non-empty, narrows the run to the named projects and
	// schedules them regardless of history.
	Projects []string
	// Stage, when set, restricts the result to that one stage.
	Stage string
}

// Forced reports whether history is bypassed.
func (s Selection) Forced() bool { return s.BuildAll || len(s.Projects) > 0 }

func (s Selection) includes(st stage.Stage) bool {
	if s.Stage == "" {
		return true
	}
	if parsed, err := stage.Parse(s.Stage); err == nil {
		return parsed == st
	}
	return s.Stage == st.String()
}

// BuildSet maps each evaluated stage to its scheduled executions. Stages
// excluded by a stage selection are absent; evaluated stages with nothing to
// do map to an empty slice.
type BuildSet map[stage.Stage][]ProjectExecution

// Stages returns the evaluated stages in pipeline order.
func (b BuildSet) Stages() []stage.Stage {
	var out []stage.Stage
	for _, s := range stage.All() {
		if _, ok := b[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the scheduled project names for s.
func (b BuildSet) Names(s stage.Stage) []string {
	names := make([]string, 0, len(b[s]))
	for _, e := range b[s] {
		names = append(names, e.Name())
	}
	return names
}

// Has reports whether the named project is scheduled for s.
func (b BuildSet) Has(s stage.Stage, name string) bool {
	for _, e := range b[s] {
		if e.Name() == name {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no stage has anything to do.
func (b BuildSet) IsEmpty() bool {
	for _, executions := range b {
		if len(executions) > 0 {
			return false
		}
	}
	return true
}

// Resolver computes build sets.
type Resolver struct {
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewResolver creates a resolver logging to slog.Default.
func NewResolver() *Resolver {
	return &Resolver{logger: slog.Default(), recorder: metrics.NoopRecorder{}}
}

// WithLogger sets the logger.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithRecorder sets the metrics recorder.
func (r *Resolver) WithRecorder(recorder metrics.Recorder) *Resolver {
	r.recorder = metrics.OrNoop(recorder)
	return r
}

// Resolve reads the outputs the evaluation needs through lookup and then
// computes the build set. Lookup errors are returned as is; a project
// selection naming unknown projects yields a config error together with the
// build set of the projects that were found.
func (r *Resolver) Resolve(ctx context.Context, lookup artifact.Lookup, projects []*project.Project, history []revision.Revision, stages []stage.Stage, sel Selection) (BuildSet, error) {
	outputs := &artifact.Snapshot{}
	if !sel.Forced() {
		var considered []stage.Stage
		for _, s := range stages {
			if sel.includes(s) {
				considered = append(considered, s)
			}
		}
		snap, err := artifact.TakeSnapshot(ctx, lookup, projects, considered)
		if err != nil {
			return nil, fmt.Errorf("read recorded outputs: %w", err)
		}
		outputs = snap
	}
	return r.FindBuildSet(outputs, projects, history, stages, sel)
}

// FindBuildSet computes, for each of stages, which projects must run.
//
// With sel.BuildAll or sel.Projects every (selected) project taking part in a
// stage is scheduled with no changed files; otherwise projects are scheduled
// from history. A stage selection leaves every other stage out of the result.
func (r *Resolver) FindBuildSet(outputs Outputs, projects []*project.Project, history []revision.Revision, stages []stage.Stage, sel Selection) (BuildSet, error) {
	start := time.Now()
	defer func() { r.recorder.ObserveDiscoveryDuration(time.Since(start)) }()

	var err error
	if len(sel.Projects) > 0 {
		selected, missing := project.SelectByName(projects, sel.Projects)
		if len(missing) > 0 {
			r.logger.Warn("Selected projects not found",
				slog.String("missing", strings.Join(missing, ",")))
			err = configurationInvalid(missing)
		}
		projects = selected
	}

	buildSet := make(BuildSet)
	for _, s := range stages {
		if !sel.includes(s) {
			continue
		}
		var executions []ProjectExecution
		if sel.Forced() {
			executions = forced(projects, s)
		} else {
			executions = BuildProjectExecutions(r.logger, outputs, projects, s, history)
			r.logger.Debug("Invalidated projects for stage",
				logfields.Stage(s.String()),
				slog.Any("projects", names(executions)))
		}
		r.recorder.SetInvalidatedProjects(s.String(), len(executions))
		buildSet[s] = executions
	}
	return buildSet, err
}

// FindBuildSet is a convenience wrapper around a default Resolver.
func FindBuildSet(logger *slog.Logger, outputs Outputs, projects []*project.Project, history []revision.Revision, stages []stage.Stage, sel Selection) (BuildSet, error) {
	return NewResolver().WithLogger(logger).FindBuildSet(outputs, projects, history, stages, sel)
}

func names(executions []ProjectExecution) []string {
	out := make([]string, 0, len(executions))
	for _, e := range executions {
		out = append(out, e.Name())
	}
	return out
}
