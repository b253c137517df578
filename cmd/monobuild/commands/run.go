package commands

// RunCmd implements the 'run' command.
type RunCmd struct {
	SelectFlags `embed:""`
	DryRun      bool `short:"n" help:"Resolve and report without executing any command"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	_, err := execute(ctx, g, root, r.SelectFlags, r.DryRun)
	return err
}
