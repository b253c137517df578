package run

import (
	"time"

	"git.home.luguber.info/inful/monobuild/internal/discovery"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// Status is the outcome of one project step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusPlanned marks steps of a plan or dry run.
	StatusPlanned Status = "planned"
	// StatusSkipped marks steps not run because an earlier stage failed.
	StatusSkipped Status = "skipped"
)

// StepResult is the outcome of running one project's stage.
type StepResult struct {
	Project      string        `json:"project"`
	Stage        stage.Stage   `json:"stage"`
	Status       Status        `json:"status"`
	Forced       bool          `json:"forced,omitempty"`
	ChangedFiles []string      `json:"changed_files,omitempty"`
	Attempts     int           `json:"attempts,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// StageResult groups the step results of one stage, sorted by project.
type StageResult struct {
	Stage stage.Stage  `json:"stage"`
	Steps []StepResult `json:"steps"`
}

// Result describes a whole run or plan.
type Result struct {
	RunID    string        `json:"run_id"`
	Branch   string        `json:"branch,omitempty"`
	Revision string        `json:"revision,omitempty"`
	DryRun   bool          `json:"dry_run,omitempty"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Stages   []StageResult `json:"stages"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Success reports whether no step failed.
func (r *Result) Success() bool {
	return len(r.Failed()) == 0
}

// Failed returns every failed step.
func (r *Result) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Stages {
		for _, step := range s.Steps {
			if step.Status == StatusFailed {
				out = append(out, step)
			}
		}
	}
	return out
}

// IsEmpty reports whether no stage had anything to do.
func (r *Result) IsEmpty() bool {
	for _, s := range r.Stages {
		if len(s.Steps) > 0 {
			return false
		}
	}
	return true
}

// Stage returns the result of stage s, if it was evaluated.
func (r *Result) Stage(s stage.Stage) (StageResult, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == s {
			return sr, true
		}
	}
	return StageResult{}, false
}

// FromBuildSet describes a build set as a plan: every scheduled project is
// StatusPlanned.
func FromBuildSet(bs discovery.BuildSet, runID string) *Result {
	now := time.Now()
	res := &Result{RunID: runID, DryRun: true, Started: now, Finished: now}
	for _, s := range bs.Stages() {
		res.Stages = append(res.Stages, stageWith(s, bs[s], StatusPlanned))
	}
	return res
}

func stageWith(s stage.Stage, executions []discovery.ProjectExecution, status Status) StageResult {
	sr := StageResult{Stage: s, Steps: make([]StepResult, 0, len(executions))}
	for _, e := range executions {
		sr.Steps = append(sr.Steps, planned(s, e, status))
	}
	return sr
}

func planned(s stage.Stage, e discovery.ProjectExecution, status Status) StepResult {
	return StepResult{
		Project:      e.Name(),
		Stage:        s,
		Status:       status,
		Forced:       e.Forced(),
		ChangedFiles: e.SortedChanges(),
	}
}
