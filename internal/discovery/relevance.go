package discovery

import (
	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/revision"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// Outputs gives the engine the last recorded output of a project's stage.
// Implementations must answer from memory; artifact.Snapshot is the usual one.
type Outputs interface {
	Output(p *project.Project, s stage.Stage) artifact.Output
}

// RelevantChanges collects the files touched by revisions that p's last
// output for s does not cover. The history is walked newest first and the
// walk stops at the first revision the output is current for; that revision
// is not included. For the deploy stage the whole history is relevant.
func RelevantChanges(outputs Outputs, p *project.Project, s stage.Stage, history []revision.Revision) sets.Set[string] {
	out := outputs.Output(p, s)
	relevant := sets.New[string]()
	for _, r := range revision.NewestFirst(history) {
		if !s.IsDeploy() && !OutputInvalidated(out, r.Hash) {
			break
		}
		relevant.AddAll(r.FilesTouched)
	}
	return relevant
}
