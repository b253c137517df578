package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Projects []string `arg:"" optional:"" help:"Only these projects"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	ws, err := root.openWorkspace(g)
	if err != nil {
		return err
	}
	defer closeWorkspace(ws)

	projects, err := ws.loader.Load(ctx)
	if err != nil {
		return err
	}
	if len(s.Projects) > 0 {
		var missing []string
		projects, missing = project.SelectByName(projects, s.Projects)
		for _, name := range missing {
			g.Logger.Warn("Unknown project", "project", name)
		}
	}

	for _, p := range projects {
		for _, st := range stage.All() {
			if _, ok := p.ForStage(st); !ok {
				continue
			}
			out, err := ws.store.LastOutput(ctx, p, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(g.Out, "%-24s %-11s %s\n", p.Name, st, artifact.Describe(out))
		}
	}
	return nil
}
