package project

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// Loader yields the declared projects of a repository.
type Loader interface {
	Load(ctx context.Context) ([]*Project, error)
}

// FileLoader discovers manifests by walking the repository working tree.
type FileLoader struct {
	root          string
	manifestNames sets.Set[string]
	manifestDir   string
	exclude       sets.Set[string]
	excludePaths  sets.Set[string]
	logger        *slog.Logger
}

// NewFileLoader creates a loader rooted at repoRoot. manifestNames are the
// accepted file names, manifestDir the directory they are expected in.
func NewFileLoader(repoRoot string, manifestNames []string, manifestDir string) *FileLoader {
	return &FileLoader{
		root:          repoRoot,
		manifestNames: sets.New(manifestNames...),
		manifestDir:   manifestDir,
		exclude:       sets.New(".git", "node_modules", "vendor"),
		excludePaths:  sets.New[string](),
		logger:        slog.Default(),
	}
}

// WithExclude adds directory names that are never descended into.
func (l *FileLoader) WithExclude(dirs ...string) *FileLoader {
	for _, d := range dirs {
		l.exclude.Add(d)
	}
	return l
}

// WithExcludePaths adds repository-relative directories that are never
// descended into. Unlike WithExclude they match at one location only.
func (l *FileLoader) WithExcludePaths(rels ...string) *FileLoader {
	for _, r := range rels {
		if r = path.Clean(filepath.ToSlash(r)); r != "." && r != "" {
			l.excludePaths.Add(r)
		}
	}
	return l
}

// WithLogger sets a custom logger.
func (l *FileLoader) WithLogger(logger *slog.Logger) *FileLoader {
	l.logger = logger
	return l
}

// FindManifests returns repository-relative manifest paths, optionally
// restricted to paths containing filter.
func (l *FileLoader) FindManifests(ctx context.Context, filter string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p == l.root {
				return nil
			}
			if l.exclude.Has(d.Name()) {
				return filepath.SkipDir
			}
			if rel, relErr := filepath.Rel(l.root, p); relErr == nil && l.excludePaths.Has(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.manifestNames.Has(d.Name()) {
			return nil
		}
		if l.manifestDir != "" && filepath.Base(filepath.Dir(p)) != l.manifestDir {
			return nil
		}
		rel, relErr := filepath.Rel(l.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if filter == "" || strings.Contains(rel, filter) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "scan repository for project manifests").
			WithContext("root", l.root).
			Build()
	}
	return found, nil
}

// Load discovers and parses every manifest in the repository.
func (l *FileLoader) Load(ctx context.Context) ([]*Project, error) {
	paths, err := l.FindManifests(ctx, "")
	if err != nil {
		return nil, err
	}
	projects := make([]*Project, 0, len(paths))
	for _, rel := range paths {
		p, err := l.LoadOne(rel)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	SortByName(projects)
	l.logger.Debug("Loaded projects", logfields.Count(len(projects)))
	return projects, nil
}

// LoadOne parses a single manifest given its repository-relative path.
func (l *FileLoader) LoadOne(rel string) (*Project, error) {
	// #nosec G304 - rel comes from our own walk or an explicit CLI argument
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryManifest, "read project manifest").
			Fatal().
			WithContext("path", rel).
			Build()
	}
	return Parse(data, rel, l.manifestDir)
}

// StaticLoader returns a fixed project list; used by tests and callers that
// already hold parsed projects.
type StaticLoader []*Project

func (s StaticLoader) Load(context.Context) ([]*Project, error) { return s, nil }
