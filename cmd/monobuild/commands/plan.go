package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/discovery"
	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/report"
	"git.home.luguber.info/inful/monobuild/internal/run"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// SelectFlags are the project and stage selectors shared by plan and run.
type SelectFlags struct {
	All      bool     `short:"a" help:"Schedule every project regardless of history"`
	Projects []string `short:"p" sep:"," help:"Only these projects (comma separated), regardless of history"`
	Stage    string   `short:"s" help:"Only evaluate this stage (build, test, deploy, postdeploy)"`
	Branch   string   `short:"b" help:"Branch to evaluate (defaults to the checked out branch)"`
	Format   string   `short:"f" default:"text" enum:"text,markdown,json,html" help:"Report format (text, markdown, json, html)"`
	Report   string   `short:"o" type:"path" help:"Write the report to this file instead of stdout"`
	Strict   bool     `help:"Fail when --projects names an unknown project"`
}

func (f SelectFlags) selection() discovery.Selection {
	return discovery.Selection{BuildAll: f.All, Projects: f.Projects, Stage: f.Stage}
}

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	SelectFlags `embed:""`
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	_, err := execute(ctx, g, root, p.SelectFlags, true)
	return err
}

// execute resolves and, unless dryRun, runs the selected build set, then
// renders the report.
func execute(ctx context.Context, g *Global, root *CLI, flags SelectFlags, dryRun bool) (*run.Result, error) {
	format, err := report.ParseFormat(flags.Format)
	if err != nil {
		return nil, ferrors.ValidationError("unsupported report format").
			WithContext("format", flags.Format).WithCause(err).Build()
	}
	if flags.Stage != "" {
		if _, perr := stage.Parse(flags.Stage); perr != nil {
			g.Logger.Warn("Unknown stage selected; nothing will be scheduled",
				"stage", flags.Stage, "valid", strings.Join(stage.ValidNames(), ", "))
		}
	}

	ws, err := root.openWorkspace(g)
	if err != nil {
		return nil, err
	}
	defer closeWorkspace(ws)

	projects, err := ws.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if flags.Strict {
		if _, missing := project.SelectByName(projects, flags.Projects); len(missing) > 0 {
			return nil, ferrors.ConfigError("unknown projects selected").
				WithContext("missing_projects", missing).Build()
		}
	}
	branch, err := ws.branch(flags.Branch)
	if err != nil {
		return nil, err
	}

	res, runErr := ws.runner(g.Err).Run(ctx, run.Request{
		Projects:  projects,
		Branch:    branch,
		Selection: flags.selection(),
		DryRun:    dryRun,
	})
	if res != nil {
		if err := writeReport(g.Out, flags.Report, res, format); err != nil {
			return res, err
		}
	}
	if runErr != nil {
		return res, runErr
	}
	if !res.Success() {
		names := make([]string, 0)
		for _, s := range res.Failed() {
			names = append(names, fmt.Sprintf("%s/%s", s.Project, s.Stage))
		}
		return res, ferrors.StepError("run failed").WithContext("failed_steps", names).Build()
	}
	return res, nil
}

func writeReport(stdout io.Writer, path string, res *run.Result, format report.Format) error {
	if path == "" {
		return report.Render(stdout, res, format)
	}
	f, err := os.Create(path) // #nosec G304 -- user supplied report path
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create report file").
			WithContext("path", path).Build()
	}
	if err := report.Render(f, res, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
