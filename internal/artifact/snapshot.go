package artifact

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// Snapshot is an immutable, preloaded view of the outputs of a set of
// projects. Reading from it never blocks or fails.
type Snapshot struct {
	outputs map[key]Output
}

// TakeSnapshot reads the output of every stage each project takes part in.
// Errors from the lookup are returned unchanged apart from wrapping.
func TakeSnapshot(ctx context.Context, lookup Lookup, projects []*project.Project, stages []stage.Stage) (*Snapshot, error) {
	snap := &Snapshot{outputs: make(map[key]Output)}
	for _, s := range stages {
		for _, p := range projects {
			if _, ok := p.ForStage(s); !ok {
				continue
			}
			k := key{p.Name, s}
			if _, done := snap.outputs[k]; done {
				continue
			}
			out, err := lookup.LastOutput(ctx, p, s)
			if err != nil {
				return nil, fmt.Errorf("last output of %s/%s: %w", p.Name, s, err)
			}
			if out == nil {
				out = NotFound{}
			}
			snap.outputs[k] = out
		}
	}
	return snap, nil
}

// Output returns the preloaded output, or NotFound when none was loaded.
func (s *Snapshot) Output(p *project.Project, st stage.Stage) Output {
	if s == nil {
		return NotFound{}
	}
	if out, ok := s.outputs[key{p.Name, st}]; ok {
		return out
	}
	return NotFound{}
}
