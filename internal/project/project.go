package project

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// StageConfig is the per-stage part of a manifest: which step runs the stage
// and the command it executes.
type StageConfig struct {
	Step    string
	Command string
	Env     map[string]string
}

// Project is one independently built unit of the monorepo.
type Project struct {
	Name        string
	Description string
	Version     string
	Maintainers []string
	// ManifestPath is the repository-relative path of the manifest file.
	ManifestPath string
	// RootPath is the repository-relative project directory, ending in "/".
	RootPath string
	// Stages holds the stages the project takes part in.
	Stages map[stage.Stage]*StageConfig
	// Dependencies lists, per stage, paths outside RootPath whose changes
	// also invalidate the project.
	Dependencies map[stage.Stage]sets.Set[string]
}

// ForStage returns the stage configuration, if the project takes part in s.
// A project takes part in every stage present in Stages; a nil entry yields an
// empty configuration.
func (p *Project) ForStage(s stage.Stage) (*StageConfig, bool) {
	if p == nil || p.Stages == nil {
		return nil, false
	}
	cfg, ok := p.Stages[s]
	if !ok {
		return nil, false
	}
	if cfg == nil {
		cfg = &StageConfig{}
	}
	return cfg, true
}

// DependenciesFor returns the declared dependency paths for s. A missing
// table yields an empty set.
func (p *Project) DependenciesFor(s stage.Stage) sets.Set[string] {
	if p == nil || p.Dependencies == nil {
		return sets.New[string]()
	}
	if deps, ok := p.Dependencies[s]; ok && deps != nil {
		return deps
	}
	return sets.New[string]()
}

// ManifestDir is the repository-relative directory holding the manifest.
func (p *Project) ManifestDir() string {
	i := strings.LastIndex(p.ManifestPath, "/")
	if i < 0 {
		return "."
	}
	return p.ManifestPath[:i]
}

// ForStageFilter returns the projects taking part in s.
func ForStageFilter(projects []*Project, s stage.Stage) []*Project {
	out := make([]*Project, 0, len(projects))
	for _, p := range projects {
		if _, ok := p.ForStage(s); ok {
			out = append(out, p)
		}
	}
	return out
}

// SelectByName narrows projects to the named ones. Names that match no
// project are returned in missing, sorted.
func SelectByName(projects []*Project, names []string) (selected []*Project, missing []string) {
	wanted := sets.New[string]()
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			wanted.Add(n)
		}
	}
	found := sets.New[string]()
	for _, p := range projects {
		if wanted.Has(p.Name) {
			selected = append(selected, p)
			found.Add(p.Name)
		}
	}
	for _, n := range sets.Sorted(wanted) {
		if !found.Has(n) {
			missing = append(missing, n)
		}
	}
	return selected, missing
}

// SortByName sorts projects in place by name.
func SortByName(projects []*Project) {
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
}
