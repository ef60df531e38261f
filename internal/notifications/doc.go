// Package notifications pushes task lifecycle events to ntfy. When no
// topic is configured every notification is a no-op.
package notifications
