// Package revision holds the commit history model the invalidation engine walks.
package revision

import (
	"context"
	"sort"

	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// LocalHash identifies the synthetic revision holding uncommitted working-tree changes.
const LocalHash = "local"

// Revision is one commit: its hash, its position in the history and the
// repository-relative paths it touched.
type Revision struct {
	Hash string
	// Ord orders revisions chronologically; higher is newer. Ordinals are
	// unique within one history and take precedence over slice order.
	Ord          int
	FilesTouched sets.Set[string]
}

// New builds a revision from a list of touched paths.
func New(ord int, hash string, files ...string) Revision {
	return Revision{Hash: hash, Ord: ord, FilesTouched: sets.New(files...)}
}

// Source yields the revision history of a branch.
type Source interface {
	History(ctx context.Context, branch string) ([]Revision, error)
}

// NewestFirst returns a copy of history sorted by ordinal, most recent first.
// The input is not modified.
func NewestFirst(history []Revision) []Revision {
	out := make([]Revision, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ord > out[j].Ord })
	return out
}

// AllFiles unions the touched paths of every revision.
func AllFiles(history []Revision) sets.Set[string] {
	out := sets.New[string]()
	for _, r := range history {
		out.AddAll(r.FilesTouched)
	}
	return out
}

// Head returns the revision with the highest ordinal.
func Head(history []Revision) (Revision, bool) {
	if len(history) == 0 {
		return Revision{}, false
	}
	return NewestFirst(history)[0], true
}
