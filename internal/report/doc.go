// Package report writes the per-task CSV checkpoint: one line per
// processed unit, rewritten in full after each pipeline phase.
package report
