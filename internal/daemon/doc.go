// Package daemon runs the long-lived process: the queue worker, the
// HTTP API for task submission and inspection, and the retention
// maintenance schedule, combined into a single lifecycle guarded by a
// flock-based instance lock.
package daemon
