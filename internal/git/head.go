package git

import (
	"github.com/go-git/go-git/v5"
)

func open(repoPath string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, ClassifyGitError(err, "open", repoPath)
	}
	return repo, nil
}

// HeadHash returns the commit hash HEAD points at.
func HeadHash(repoPath string) (string, error) {
	repo, err := open(repoPath)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", ClassifyGitError(err, "head", repoPath)
	}
	return ref.Hash().String(), nil
}

// CurrentBranch returns the short name of the checked out branch, or "" for
// a detached HEAD.
func CurrentBranch(repoPath string) (string, error) {
	repo, err := open(repoPath)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", ClassifyGitError(err, "head", repoPath)
	}
	if !ref.Name().IsBranch() {
		return "", nil
	}
	return ref.Name().Short(), nil
}
