package discovery

import (
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/artifact"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// OutputInvalidated reports whether out fails to cover the revision with the
// given hash. Only a success carrying an artifact built from exactly that
// revision is current.
func OutputInvalidated(out artifact.Output, revisionHash string) bool {
	rev, ok := artifact.TrustedRevision(out)
	return !ok || rev != revisionHash
}

// IsInvalidated reports whether a change to path affects p in stage s: the
// path lies under the project root or under one of the project's dependency
// paths for s. Matching is a plain string prefix.
func IsInvalidated(logger *slog.Logger, p *project.Project, s stage.Stage, path string) bool {
	touchedDependency, viaDependency := firstPrefix(p.DependenciesFor(s), path)
	underRoot := strings.HasPrefix(path, p.RootPath)

	if logger != nil {
		if viaDependency {
			logger.Debug("Path touched dependency",
				logfields.Project(p.Name), logfields.Stage(s.String()), logfields.Path(path),
				slog.String("dependency", touchedDependency))
		}
		if underRoot {
			logger.Debug("Path touched project root",
				logfields.Project(p.Name), logfields.Stage(s.String()), logfields.Path(path),
				slog.String("root", p.RootPath))
		}
	}
	return underRoot || viaDependency
}

// firstPrefix returns the lexically smallest entry of deps that prefixes path,
// so the logged dependency does not depend on map iteration order.
func firstPrefix(deps sets.Set[string], path string) (string, bool) {
	for _, dep := range sets.Sorted(deps) {
		if strings.HasPrefix(path, dep) {
			return dep, true
		}
	}
	return "", false
}
