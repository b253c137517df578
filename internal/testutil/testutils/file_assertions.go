package helpers

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
)

// RepoAssertions checks files below a repository root in tests.
type RepoAssertions struct {
	t    *testing.T
	root string
}

// NewRepoAssertions creates an assertion helper rooted at root.
func NewRepoAssertions(t *testing.T, root string) *RepoAssertions {
	return &RepoAssertions{t: t, root: root}
}

func (ra *RepoAssertions) full(rel string) string {
	return filepath.Join(ra.root, filepath.FromSlash(rel))
}

// AssertFileExists fails when rel is absent.
func (ra *RepoAssertions) AssertFileExists(rel string) *RepoAssertions {
	ra.t.Helper()
	if _, err := os.Stat(ra.full(rel)); err != nil {
		ra.t.Errorf("expected %s to exist: %v", rel, err)
	}
	return ra
}

// AssertFileMissing fails when rel exists.
func (ra *RepoAssertions) AssertFileMissing(rel string) *RepoAssertions {
	ra.t.Helper()
	if _, err := os.Stat(ra.full(rel)); err == nil {
		ra.t.Errorf("expected %s to be absent", rel)
	}
	return ra
}

// AssertFileContains fails unless rel contains want.
func (ra *RepoAssertions) AssertFileContains(rel, want string) *RepoAssertions {
	ra.t.Helper()
	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(ra.full(rel))
	if err != nil {
		ra.t.Errorf("read %s: %v", rel, err)
		return ra
	}
	if !strings.Contains(string(content), want) {
		ra.t.Errorf("expected %s to contain %q\nactual content:\n%s", rel, want, content)
	}
	return ra
}

// AssertOutputRecorded checks that the file store holds an output for the
// project whose manifest lives in manifestDir.
func (ra *RepoAssertions) AssertOutputRecorded(manifestDir, stateDir, stage string) *RepoAssertions {
	ra.t.Helper()
	return ra.AssertFileExists(path.Join(manifestDir, stateDir, stage+".json"))
}
