package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// Issue is a single lint finding.
type Issue struct {
	Project string
	Message string
}

func (i Issue) String() string { return i.Project + ": " + i.Message }

// Lint checks a loaded project set for problems the loader does not reject:
// duplicate names, dependencies on paths that do not exist in the repository
// and stages that declare neither a step nor a command.
func Lint(repoRoot string, projects []*Project) []Issue {
	var issues []Issue

	byName := map[string][]string{}
	for _, p := range projects {
		byName[p.Name] = append(byName[p.Name], p.ManifestPath)
	}
	for name, paths := range byName {
		if len(paths) > 1 {
			sort.Strings(paths)
			issues = append(issues, Issue{Project: name, Message: "name is declared by multiple manifests: " + strings.Join(paths, ", ")})
		}
	}

	for _, p := range projects {
		for _, s := range stage.All() {
			if cfg, ok := p.ForStage(s); ok && cfg.Step == "" && cfg.Command == "" {
				issues = append(issues, Issue{Project: p.Name, Message: fmt.Sprintf("stage %s has neither step nor command", s)})
			}
			for _, dep := range sets.Sorted(p.DependenciesFor(s)) {
				if _, err := os.Stat(filepath.Join(repoRoot, filepath.FromSlash(dep))); err != nil {
					issues = append(issues, Issue{Project: p.Name, Message: fmt.Sprintf("%s dependency %q does not exist", s, dep)})
				}
			}
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Project != issues[j].Project {
			return issues[i].Project < issues[j].Project
		}
		return issues[i].Message < issues[j].Message
	})
	return issues
}

// LintError folds issues into a validation error, or nil when there are none.
func LintError(issues []Issue) error {
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = is.String()
	}
	return errors.ValidationError(fmt.Sprintf("%d project lint issue(s)", len(issues))).
		WithContext("issues", msgs).
		Build()
}
