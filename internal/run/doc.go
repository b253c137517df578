// Package run executes a build set stage by stage and records the outcome of
// every step in the artifact store.
//
// Each stage is resolved right before it runs, from freshly read outputs, so
// a stage sees the results recorded by the stages before it. Execution stops
// after the first stage with a failing step; the remaining stages are still
// resolved and reported as skipped.
package run
