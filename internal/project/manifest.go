package project

import (
	"fmt"
	"path"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// manifestFile is the on-disk shape shared by the YAML and TOML formats.
type manifestFile struct {
	Version      string                `yaml:"version" toml:"version"`
	Name         string                `yaml:"name" toml:"name"`
	Description  string                `yaml:"description,omitempty" toml:"description"`
	Maintainers  []string              `yaml:"maintainer,omitempty" toml:"maintainer"`
	Stages       map[string]stageEntry `yaml:"stages" toml:"stages"`
	Dependencies map[string][]string   `yaml:"dependencies,omitempty" toml:"dependencies"`
}

type stageEntry struct {
	Step    string            `yaml:"step" toml:"step"`
	Command string            `yaml:"command" toml:"command"`
	Env     map[string]string `yaml:"env,omitempty" toml:"env"`
}

// UnmarshalYAML accepts either a bare step name or a mapping:
//
//	stages:
//	  build: Docker Build
//	  test:
//	    step: Sbt Test
//	    command: sbt test
func (e *stageEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Step = node.Value
		return nil
	}
	type plain stageEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = stageEntry(p)
	return nil
}

// Format is the serialization of a manifest file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from the manifest's file extension.
func FormatFor(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes a manifest. manifestPath is the repository-relative path of the
// file (forward slashes); manifestDir is the conventional directory name the
// manifest lives in ("deployment"), used to derive the project root.
func Parse(data []byte, manifestPath, manifestDir string) (*Project, error) {
	var mf manifestFile
	var err error
	switch FormatFor(manifestPath) {
	case FormatTOML:
		err = toml.Unmarshal(data, &mf)
	default:
		err = yaml.Unmarshal(data, &mf)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryManifest, "parse project manifest").
			Fatal().
			WithContext("path", manifestPath).
			Build()
	}
	return fromManifest(mf, manifestPath, manifestDir)
}

func fromManifest(mf manifestFile, manifestPath, manifestDir string) (*Project, error) {
	if strings.TrimSpace(mf.Name) == "" {
		return nil, errors.ManifestError("project manifest has no name").
			WithContext("path", manifestPath).
			Build()
	}

	p := &Project{
		Name:         mf.Name,
		Description:  mf.Description,
		Version:      mf.Version,
		Maintainers:  mf.Maintainers,
		ManifestPath: manifestPath,
		RootPath:     rootPathFor(manifestPath, manifestDir),
		Stages:       make(map[stage.Stage]*StageConfig, len(mf.Stages)),
		Dependencies: make(map[stage.Stage]sets.Set[string], len(mf.Dependencies)),
	}

	for rawStage, entry := range mf.Stages {
		s, err := stage.Parse(rawStage)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryManifest, "unknown stage in manifest").
				Fatal().
				WithContext("path", manifestPath).
				WithContext("stage", rawStage).
				Build()
		}
		p.Stages[s] = &StageConfig{Step: entry.Step, Command: entry.Command, Env: entry.Env}
	}

	for rawStage, deps := range mf.Dependencies {
		s, err := stage.Parse(rawStage)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryManifest, "unknown dependency stage in manifest").
				Fatal().
				WithContext("path", manifestPath).
				WithContext("stage", rawStage).
				Build()
		}
		set := sets.New[string]()
		for _, d := range deps {
			if d = normalizeDependency(d); d != "" {
				set.Add(d)
			}
		}
		p.Dependencies[s] = set
	}

	return p, nil
}

// rootPathFor derives "services/orders/" from "services/orders/deployment/project.yml".
// Manifests outside a manifestDir make their own directory the root.
func rootPathFor(manifestPath, manifestDir string) string {
	dir := path.Dir(manifestPath)
	if manifestDir != "" && path.Base(dir) == manifestDir {
		dir = path.Dir(dir)
	}
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimSuffix(dir, "/") + "/"
}

func normalizeDependency(dep string) string {
	return strings.TrimPrefix(strings.TrimSpace(dep), "./")
}

// String renders a short human description used by "projects show".
func (p *Project) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", p.Name, p.RootPath)
	if p.Description != "" {
		fmt.Fprintf(&b, "  %s\n", p.Description)
	}
	for _, s := range stage.All() {
		cfg, ok := p.ForStage(s)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-10s step=%q command=%q\n", s, cfg.Step, cfg.Command)
		if deps := p.DependenciesFor(s); deps.Len() > 0 {
			fmt.Fprintf(&b, "  %-10s depends on %s\n", "", strings.Join(sets.Sorted(deps), ", "))
		}
	}
	return b.String()
}
