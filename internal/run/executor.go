package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// Step describes one command invocation.
type Step struct {
	RunID        string
	Revision     string
	Project      *project.Project
	Stage        stage.Stage
	Config       *project.StageConfig
	ChangedFiles []string
}

// Executor runs one step.
type Executor interface {
	Execute(ctx context.Context, step Step) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step Step) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, step Step) error { return f(ctx, step) }

const tailSize = 2048

// ShellExecutor runs a stage command through a shell in the project root.
//
// The command sees the process environment plus the stage's env entries and:
//
//	MONOBUILD_RUN_ID, MONOBUILD_PROJECT, MONOBUILD_STAGE,
//	MONOBUILD_REVISION, MONOBUILD_CHANGED_FILES (newline separated)
type ShellExecutor struct {
	RepoRoot string
	Shell    string
	Timeout  time.Duration
	Output   io.Writer
}

// Execute implements Executor. A failing command yields a step error whose
// message ends with the tail of the command output.
func (e *ShellExecutor) Execute(ctx context.Context, step Step) error {
	if step.Config == nil || strings.TrimSpace(step.Config.Command) == "" {
		name := ""
		if step.Config != nil {
			name = step.Config.Step
		}
		return errors.StepError("stage has no command").
			WithContext("project", step.Project.Name).
			WithContext("stage", step.Stage.String()).
			WithContext("step", name).
			UserAction().
			Build()
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	// #nosec G204 -- commands come from the repository's own manifests
	cmd := exec.CommandContext(ctx, shell, "-c", step.Config.Command)
	cmd.WaitDelay = time.Second
	cmd.Dir = filepath.Join(e.RepoRoot, filepath.FromSlash(step.Project.RootPath))
	cmd.Env = append(os.Environ(), stepEnv(step)...)

	tail := &tailBuffer{max: tailSize}
	var out io.Writer = tail
	if e.Output != nil {
		out = io.MultiWriter(e.Output, tail)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = fmt.Sprintf("%s (%v)", msg, ctx.Err())
		}
		if t := strings.TrimSpace(tail.String()); t != "" {
			msg += ": " + lastLine(t)
		}
		return errors.WrapError(err, errors.CategoryStep, msg).
			WithContext("project", step.Project.Name).
			WithContext("stage", step.Stage.String()).
			WithContext("output", tail.String()).
			Build()
	}
	return nil
}

func stepEnv(step Step) []string {
	env := []string{
		"MONOBUILD_RUN_ID=" + step.RunID,
		"MONOBUILD_PROJECT=" + step.Project.Name,
		"MONOBUILD_STAGE=" + step.Stage.String(),
		"MONOBUILD_REVISION=" + step.Revision,
		"MONOBUILD_CHANGED_FILES=" + strings.Join(step.ChangedFiles, "\n"),
	}
	keys := make([]string, 0, len(step.Config.Env))
	for k := range step.Config.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+step.Config.Env[k])
	}
	return env
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
