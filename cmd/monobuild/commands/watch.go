package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/monobuild/internal/discovery"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/report"
	"git.home.luguber.info/inful/monobuild/internal/run"
	"git.home.luguber.info/inful/monobuild/internal/watch"
)

// WatchCmd implements the 'watch' command: local changes are always
// included and the plan is printed after every burst of edits.
type WatchCmd struct {
	Stage    string        `short:"s" help:"Only evaluate this stage"`
	Format   string        `short:"f" default:"text" enum:"text,markdown,json" help:"Report format"`
	Debounce time.Duration `help:"Quiet period before re-planning (overrides watch.debounce)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	format, err := report.ParseFormat(w.Format)
	if err != nil {
		return err
	}
	ws, err := root.openWorkspace(g)
	if err != nil {
		return err
	}
	defer closeWorkspace(ws)
	ws.history.WithLocalChanges(true)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = ws.cfg.WatchDebounce()
	}

	replan := func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			ws.logger.Info("Re-planning after changes", logfields.Count(len(changed)))
		}
		projects, err := ws.loader.Load(ctx)
		if err != nil {
			return err
		}
		branch, err := ws.branch("")
		if err != nil {
			return err
		}
		res, err := ws.runner(g.Err).Run(ctx, run.Request{
			Projects:  projects,
			Branch:    branch,
			Selection: discovery.Selection{Stage: w.Stage},
			DryRun:    true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "--- %s\n", time.Now().Format(time.TimeOnly))
		return report.Render(g.Out, res, format)
	}

	if err := replan(ctx, nil); err != nil {
		ws.logger.Error("Initial plan failed", logfields.Error(err))
	}

	watcher, err := watch.New(ws.root, debounce, replan, append(ws.footprint.names(), "node_modules")...)
	if err != nil {
		return err
	}
	return watcher.WithIgnoredPaths(ws.footprint.paths()...).WithLogger(ws.logger).Run(ctx)
}
