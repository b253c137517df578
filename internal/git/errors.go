package git

import (
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
)

// GitError simplifies creating a git-scoped ClassifiedError.
func GitError(message string) *errors.ErrorBuilder {
	return errors.NewError(errors.CategoryGit, message)
}

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, path string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())

	builder := GitError("git operation failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("path", path)

	switch {
	case strings.Contains(l, "repository does not exist") || strings.Contains(l, "repository not found"):
		builder.WithCategory(errors.CategoryNotFound).UserAction()
	case strings.Contains(l, "reference not found") || strings.Contains(l, "object not found"):
		builder.WithCategory(errors.CategoryNotFound)
	case strings.Contains(l, "permission denied"):
		builder.WithCategory(errors.CategoryFileSystem).UserAction()
	case strings.Contains(l, "shallow"):
		builder.WithContext("shallow", true).UserAction()
	}

	return builder.Build()
}
