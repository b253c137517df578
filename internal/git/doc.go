// Package git reads the revision history of the monorepo checkout with
// go-git.
//
// HistorySource walks the commits of the current branch back to the point
// where it left the main branch and reports, per commit, the files it
// touched relative to its first parent. On the main branch only the HEAD
// commit is reported. Uncommitted working-tree changes can be added as a
// synthetic revision with hash revision.LocalHash.
package git
