// Package logging provides the shared slog setup: a human readable
// console handler, a JSON handler for file output, and helpers for
// attaching task scoped fields from context.
package logging
