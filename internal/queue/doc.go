// Package queue persists workflow tasks in SQLite and enforces the
// task lifecycle: pending, processing, completed, failed. The store is
// the single source of truth shared by the CLI, the daemon API, and
// the worker loop.
package queue
