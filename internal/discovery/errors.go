package discovery

import (
	"strings"

	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
)

// ErrConfigurationInvalid is the sentinel matched by errors.Is for project
// filters naming projects that were not loaded. The build set returned with
// it is still usable, so it carries warning severity.
var ErrConfigurationInvalid = ferrors.ConfigError("configuration invalid").Warning().Build()

func configurationInvalid(missing []string) error {
	return ferrors.ConfigError("configuration invalid").
		Warning().
		WithContext("missing_projects", missing).
		WithCause(unknownProjectsError(missing)).
		Build()
}

type unknownProjectsError []string

func (e unknownProjectsError) Error() string {
	return "unknown projects: " + strings.Join(e, ", ")
}

// MissingProjects returns the unknown project names carried by a
// configuration error from FindBuildSet.
func MissingProjects(err error) []string {
	ce, ok := ferrors.AsClassified(err)
	if !ok {
		return nil
	}
	v, ok := ce.Context().Get("missing_projects")
	if !ok {
		return nil
	}
	names, _ := v.([]string)
	return names
}
