// Package pipeline builds and executes workflow plans. Each workflow
// kind contributes a pipeline that turns validated input rows into
// gated phases of unit actions; the executor runs them fail-fast and
// checkpoints a CSV report after every phase.
package pipeline
