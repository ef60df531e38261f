// Package reconcile implements the lettrage matcher: pairing an
// invoice with its credit advice inside an account so both lines can
// be tagged with the same letter.
package reconcile
