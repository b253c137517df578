package artifact

import (
	"context"

	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// Lookup reads the last recorded output of a project's stage. A missing
// record is NotFound, not an error; errors are reserved for I/O failures.
type Lookup interface {
	LastOutput(ctx context.Context, p *project.Project, s stage.Stage) (Output, error)
}

// Store reads and records outputs.
type Store interface {
	Lookup
	// Record stores out as the latest output. Recording NotFound clears it.
	Record(ctx context.Context, p *project.Project, s stage.Stage, out Output) error
	Close() error
}
