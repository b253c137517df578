package git

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
)

func TestClassifyGitError(t *testing.T) {
	assert.NoError(t, ClassifyGitError(nil, "op", "p"))

	tests := []struct {
		msg      string
		category errors.ErrorCategory
	}{
		{"repository does not exist", errors.CategoryNotFound},
		{"reference not found", errors.CategoryNotFound},
		{"open .git/index: permission denied", errors.CategoryFileSystem},
		{"something odd", errors.CategoryGit},
	}
	for _, tt := range tests {
		err := ClassifyGitError(stderrors.New(tt.msg), "log", "/repo")
		assert.Equal(t, tt.category, errors.GetCategory(err), tt.msg)
	}

	already := GitError("x").Build()
	assert.Same(t, already, ClassifyGitError(already, "op", "p"))
}
