package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/monobuild/cmd/monobuild/commands"
	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal()
	parser := kong.Parse(cli,
		kong.Name("monobuild"),
		kong.Description("Incremental staged builds for monorepos"),
		kong.UsageOnError(),
	)
	global.Logger = slog.Default()
	err := parser.Run(global, cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
