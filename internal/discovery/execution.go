package discovery

import (
	"log/slog"

	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/revision"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// ProjectExecution schedules a project for a stage. ChangedFiles holds the
// paths that caused it; it is empty when the project was forced by a full
// build or an explicit project selection.
type ProjectExecution struct {
	Project      *project.Project
	ChangedFiles sets.Set[string]
}

// Forced reports whether the execution was scheduled without a change.
func (e ProjectExecution) Forced() bool { return e.ChangedFiles.Len() == 0 }

// Name is the project name.
func (e ProjectExecution) Name() string { return e.Project.Name }

// SortedChanges returns ChangedFiles in lexical order.
func (e ProjectExecution) SortedChanges() []string { return sets.Sorted(e.ChangedFiles) }

// ToProjectExecution decides whether p must run stage s. It returns false
// when p does not take part in s or no relevant change affects it.
func ToProjectExecution(logger *slog.Logger, outputs Outputs, p *project.Project, s stage.Stage, history []revision.Revision) (ProjectExecution, bool) {
	if _, ok := p.ForStage(s); !ok {
		return ProjectExecution{}, false
	}
	changed := RelevantChanges(outputs, p, s, history).Filter(func(path string) bool {
		return IsInvalidated(logger, p, s, path)
	})
	if changed.Len() == 0 {
		return ProjectExecution{}, false
	}
	return ProjectExecution{Project: p, ChangedFiles: changed}, true
}

// BuildProjectExecutions returns the executions of every invalidated project
// for stage s, sorted by project name.
func BuildProjectExecutions(logger *slog.Logger, outputs Outputs, projects []*project.Project, s stage.Stage, history []revision.Revision) []ProjectExecution {
	executions := make([]ProjectExecution, 0)
	for _, p := range sortedProjects(projects) {
		if e, ok := ToProjectExecution(logger, outputs, p, s, history); ok {
			executions = append(executions, e)
		}
	}
	return executions
}

func forced(projects []*project.Project, s stage.Stage) []ProjectExecution {
	executions := make([]ProjectExecution, 0)
	for _, p := range sortedProjects(project.ForStageFilter(projects, s)) {
		executions = append(executions, ProjectExecution{Project: p, ChangedFiles: sets.New[string]()})
	}
	return executions
}

func sortedProjects(projects []*project.Project) []*project.Project {
	out := make([]*project.Project, len(projects))
	copy(out, projects)
	project.SortByName(out)
	return out
}
