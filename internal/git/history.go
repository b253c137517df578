package git

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/revision"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// DefaultMainBranch is used when no main branch is configured.
const DefaultMainBranch = "main"

// HistorySource implements revision.Source on a local checkout.
type HistorySource struct {
	repoPath     string
	mainBranch   string
	includeLocal bool
	maxCommits   int
	ignoredDirs  []string
	ignoredPaths []string
	logger       *slog.Logger
}

var _ revision.Source = (*HistorySource)(nil)

// NewHistorySource creates a history source for the repository containing
// repoPath.
func NewHistorySource(repoPath, mainBranch string) *HistorySource {
	if mainBranch == "" {
		mainBranch = DefaultMainBranch
	}
	return &HistorySource{repoPath: repoPath, mainBranch: mainBranch, logger: slog.Default()}
}

// WithLocalChanges adds uncommitted working-tree changes as the newest revision.
func (h *HistorySource) WithLocalChanges(include bool) *HistorySource {
	h.includeLocal = include
	return h
}

// WithMaxCommits bounds how many branch commits are walked; 0 is unlimited.
// Changes in commits past the limit are invisible to invalidation.
func (h *HistorySource) WithMaxCommits(n int) *HistorySource {
	h.maxCommits = n
	return h
}

// WithIgnoredDirs drops working-tree changes inside directories with these
// names from the local revision.
func (h *HistorySource) WithIgnoredDirs(dirs ...string) *HistorySource {
	h.ignoredDirs = append(h.ignoredDirs, dirs...)
	return h
}

// WithIgnoredPaths drops working-tree changes at or below these
// repository-relative paths from the local revision.
func (h *HistorySource) WithIgnoredPaths(rels ...string) *HistorySource {
	for _, r := range rels {
		if r = path.Clean(filepath.ToSlash(r)); r != "." && r != "" {
			h.ignoredPaths = append(h.ignoredPaths, r)
		}
	}
	return h
}

// WithLogger sets the logger.
func (h *HistorySource) WithLogger(logger *slog.Logger) *HistorySource {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// History returns the revisions of branch that are not on the main branch,
// oldest with ordinal 1. An empty branch means the checked out HEAD. On the
// main branch itself only the HEAD commit is returned.
func (h *HistorySource) History(ctx context.Context, branch string) ([]revision.Revision, error) {
	repo, err := open(h.repoPath)
	if err != nil {
		return nil, err
	}

	head, name, err := h.resolveBranch(repo, branch)
	if err != nil {
		return nil, err
	}

	var commits []*object.Commit // newest first
	if name == h.mainBranch {
		c, err := repo.CommitObject(head)
		if err != nil {
			return nil, ClassifyGitError(err, "commit", head.String())
		}
		commits = []*object.Commit{c}
	} else {
		onMain, err := h.mainCommits(ctx, repo)
		if err != nil {
			return nil, err
		}
		commits, err = h.branchCommits(ctx, repo, head, onMain)
		if err != nil {
			return nil, err
		}
	}

	history := make([]revision.Revision, 0, len(commits)+1)
	for i := len(commits) - 1; i >= 0; i-- {
		files, err := touchedFiles(ctx, commits[i])
		if err != nil {
			return nil, err
		}
		history = append(history, revision.Revision{
			Hash:         commits[i].Hash.String(),
			Ord:          len(history) + 1,
			FilesTouched: files,
		})
	}

	if h.includeLocal {
		files, err := h.localChanges(repo)
		if err != nil {
			return nil, err
		}
		if files.Len() > 0 {
			history = append(history, revision.Revision{Hash: revision.LocalHash, Ord: len(history) + 1, FilesTouched: files})
		}
	}

	h.logger.Debug("Loaded revision history",
		logfields.Branch(name), logfields.Count(len(history)))
	return history, nil
}

func (h *HistorySource) resolveBranch(repo *git.Repository, branch string) (plumbing.Hash, string, error) {
	if branch == "" {
		ref, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, "", ClassifyGitError(err, "head", h.repoPath)
		}
		name := ""
		if ref.Name().IsBranch() {
			name = ref.Name().Short()
		}
		return ref.Hash(), name, nil
	}
	if hash, ok := lookupBranch(repo, branch); ok {
		return hash, branch, nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(branch))
	if err != nil {
		return plumbing.ZeroHash, "", ClassifyGitError(err, "resolve", branch)
	}
	return *hash, branch, nil
}

func lookupBranch(repo *git.Repository, branch string) (plumbing.Hash, bool) {
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewRemoteReferenceName("origin", branch),
	} {
		if ref, err := repo.Reference(name, true); err == nil {
			return ref.Hash(), true
		}
	}
	return plumbing.ZeroHash, false
}

// mainCommits returns every commit reachable from the main branch, or nil
// when the main branch does not exist.
func (h *HistorySource) mainCommits(ctx context.Context, repo *git.Repository) (sets.Set[plumbing.Hash], error) {
	mainHash, ok := lookupBranch(repo, h.mainBranch)
	if !ok {
		h.logger.Warn("Main branch not found, walking the whole branch history",
			logfields.Branch(h.mainBranch))
		return nil, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: mainHash})
	if err != nil {
		return nil, ClassifyGitError(err, "log", h.mainBranch)
	}
	defer iter.Close()

	reachable := sets.New[plumbing.Hash]()
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		reachable.Add(c.Hash)
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, ClassifyGitError(err, "log", h.mainBranch)
	}
	return reachable, nil
}

// branchCommits follows first parents from head until a commit on the main
// branch, the root commit or the commit limit is reached.
func (h *HistorySource) branchCommits(ctx context.Context, repo *git.Repository, head plumbing.Hash, onMain sets.Set[plumbing.Hash]) ([]*object.Commit, error) {
	var commits []*object.Commit
	hash := head
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onMain.Has(hash) {
			break
		}
		c, err := repo.CommitObject(hash)
		if err != nil {
			return nil, ClassifyGitError(err, "commit", hash.String())
		}
		commits = append(commits, c)
		if c.NumParents() == 0 {
			break
		}
		if h.maxCommits > 0 && len(commits) >= h.maxCommits {
			if !onMain.Has(c.ParentHashes[0]) {
				h.logger.Warn("Commit limit reached before the main branch; older changes are not considered",
					logfields.Count(h.maxCommits), logfields.Revision(c.ParentHashes[0].String()))
			}
			break
		}
		hash = c.ParentHashes[0]
	}
	return commits, nil
}

// touchedFiles lists the paths changed by c relative to its first parent.
// Renames report both the old and the new path.
func touchedFiles(ctx context.Context, c *object.Commit) (sets.Set[string], error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, ClassifyGitError(err, "tree", c.Hash.String())
	}
	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, ClassifyGitError(err, "parent", c.Hash.String())
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, ClassifyGitError(err, "tree", parent.Hash.String())
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, nil)
	if err != nil {
		return nil, ClassifyGitError(err, "diff", c.Hash.String())
	}
	files := sets.New[string]()
	for _, ch := range changes {
		if ch.From.Name != "" {
			files.Add(ch.From.Name)
		}
		if ch.To.Name != "" {
			files.Add(ch.To.Name)
		}
	}
	return files, nil
}

func (h *HistorySource) localChanges(repo *git.Repository) (sets.Set[string], error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, ClassifyGitError(err, "worktree", h.repoPath)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, ClassifyGitError(err, "status", h.repoPath)
	}
	files := sets.New[string]()
	for file, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		if h.ignored(file) {
			continue
		}
		files.Add(file)
	}
	return files, nil
}

func (h *HistorySource) ignored(file string) bool {
	padded := "/" + file
	for _, dir := range h.ignoredDirs {
		if strings.Contains(padded, "/"+dir+"/") {
			return true
		}
	}
	for _, rel := range h.ignoredPaths {
		if file == rel || strings.HasPrefix(file, rel+"/") {
			return true
		}
	}
	return false
}
