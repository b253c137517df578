// Package discovery decides, per pipeline stage, which projects of the
// monorepo must be executed again.
//
// A project is scheduled for a stage when a file under its root, or under one
// of the paths it declares as a dependency for that stage, was touched by a
// revision that its last recorded output does not cover. Walking the branch
// history newest first, revisions are collected until one is found whose
// hash equals the revision the stored artifact was built from; that revision
// and everything older are already reflected in the artifact. The deploy
// stage never trusts a stored artifact and always sees the whole history.
//
// Evaluation is pure: outputs are read once, up front, into an
// artifact.Snapshot and the engine itself performs no I/O.
//
// Known limitation: an artifact counts as current only when its revision is
// exactly one of the revisions in the history. An artifact built from a
// commit outside the walked history (for example after a rebase) never stops
// the walk, so the project is rebuilt.
package discovery
