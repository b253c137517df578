package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SetupTestGitRepo initializes a temporary git repository whose default
// branch is main.
// Returns the repository, its worktree, and the absolute path to the temporary directory.
func SetupTestGitRepo(t *testing.T) (*git.Repository, *git.Worktree, string) {
	t.Helper()
	return SetupTestGitRepoAt(t, t.TempDir())
}

// SetupTestGitRepoAt initializes a repository whose default branch is main
// in dir, creating it when missing.
func SetupTestGitRepoAt(t *testing.T, dir string) (*git.Repository, *git.Worktree, string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create repo dir: %v", err)
	}
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	return repo, w, dir
}

// CommitFiles writes files (repository-relative path to content), stages
// them and commits, returning the commit hash.
func CommitFiles(t *testing.T, repo *git.Repository, repoPath, msg string, files map[string]string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for rel, content := range files {
		WriteFile(t, repoPath, rel, content)
		if _, err := wt.Add(rel); err != nil {
			t.Fatalf("add %s: %v", rel, err)
		}
	}
	return commit(t, wt, msg, nil)
}

// RemoveAndCommit deletes a tracked file and commits the removal.
func RemoveAndCommit(t *testing.T, repo *git.Repository, msg, rel string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Remove(rel); err != nil {
		t.Fatalf("remove %s: %v", rel, err)
	}
	return commit(t, wt, msg, nil)
}

// MergeCommit records a commit on the current branch with other as second
// parent. The tree is whatever is currently staged.
func MergeCommit(t *testing.T, repo *git.Repository, msg string, other plumbing.Hash) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	return commit(t, wt, msg, []plumbing.Hash{head.Hash(), other})
}

// CheckoutBranch switches to branch, creating it at HEAD when create is set.
func CheckoutBranch(t *testing.T, repo *git.Repository, branch string, create bool) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}); err != nil {
		t.Fatalf("checkout %s: %v", branch, err)
	}
}

// WriteFile writes content below root, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func commit(t *testing.T, wt *git.Worktree, msg string, parents []plumbing.Hash) plumbing.Hash {
	t.Helper()
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author:            &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}
