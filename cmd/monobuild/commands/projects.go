package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// ProjectsCmd groups the project inspection commands.
type ProjectsCmd struct {
	List ProjectsListCmd `cmd:"" default:"1" help:"List discovered projects"`
	Show ProjectsShowCmd `cmd:"" help:"Show one project's manifest"`
	Lint ProjectsLintCmd `cmd:"" help:"Check manifests for errors"`
}

// ProjectsListCmd implements 'projects list'.
type ProjectsListCmd struct {
	Stage string `short:"s" help:"Only projects taking part in this stage"`
}

func (l *ProjectsListCmd) Run(g *Global, root *CLI) error {
	projects, _, err := loadProjects(g, root)
	if err != nil {
		return err
	}
	if l.Stage != "" {
		s, err := stage.Parse(l.Stage)
		if err != nil {
			return err
		}
		projects = project.ForStageFilter(projects, s)
	}
	for _, p := range projects {
		fmt.Fprintf(g.Out, "%-24s %-40s %s\n", p.Name, p.RootPath, strings.Join(stageNames(p), ","))
	}
	return nil
}

// ProjectsShowCmd implements 'projects show'.
type ProjectsShowCmd struct {
	Name string `arg:"" help:"Project name"`
}

func (s *ProjectsShowCmd) Run(g *Global, root *CLI) error {
	projects, _, err := loadProjects(g, root)
	if err != nil {
		return err
	}
	selected, missing := project.SelectByName(projects, []string{s.Name})
	if len(missing) > 0 || len(selected) == 0 {
		return ferrors.NewError(ferrors.CategoryNotFound, "project not found").
			WithContext("project", s.Name).Build()
	}
	describeProject(g.Out, selected[0])
	return nil
}

// ProjectsLintCmd implements 'projects lint'.
type ProjectsLintCmd struct{}

func (ProjectsLintCmd) Run(g *Global, root *CLI) error {
	projects, repoRoot, err := loadProjects(g, root)
	if err != nil {
		return err
	}
	issues := project.Lint(repoRoot, projects)
	for _, is := range issues {
		fmt.Fprintln(g.Out, is.String())
	}
	if len(issues) == 0 {
		fmt.Fprintf(g.Out, "%d projects OK\n", len(projects))
	}
	return project.LintError(issues)
}

func loadProjects(g *Global, root *CLI) ([]*project.Project, string, error) {
	ws, err := root.openWorkspace(g)
	if err != nil {
		return nil, "", err
	}
	defer closeWorkspace(ws)
	projects, err := ws.loader.Load(context.Background())
	return projects, ws.root, err
}

func stageNames(p *project.Project) []string {
	var names []string
	for _, s := range stage.All() {
		if _, ok := p.ForStage(s); ok {
			names = append(names, s.String())
		}
	}
	return names
}

func describeProject(w io.Writer, p *project.Project) {
	fmt.Fprintf(w, "Name:        %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", p.Description)
	}
	if p.Version != "" {
		fmt.Fprintf(w, "Version:     %s\n", p.Version)
	}
	if len(p.Maintainers) > 0 {
		fmt.Fprintf(w, "Maintainers: %s\n", strings.Join(p.Maintainers, ", "))
	}
	fmt.Fprintf(w, "Manifest:    %s\n", p.ManifestPath)
	fmt.Fprintf(w, "Root:        %s\n", p.RootPath)
	fmt.Fprintln(w, "Stages:")
	for _, s := range stage.All() {
		cfg, ok := p.ForStage(s)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %s: %s", s, cfg.Step)
		if cfg.Command != "" {
			fmt.Fprintf(w, " (%s)", cfg.Command)
		}
		fmt.Fprintln(w)
		if deps := p.DependenciesFor(s); deps.Len() > 0 {
			fmt.Fprintf(w, "    depends on: %s\n", strings.Join(sets.Sorted(deps), ", "))
		}
	}
}
