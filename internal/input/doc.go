// Package input parses workflow input files: CSV loading with header
// mapping, required-field validation that drops bad rows instead of
// aborting, and order-preserving grouping for pipeline phases.
package input
