package queue

import "errors"

var (
	// ErrInvalidKind marks an enqueue with an unknown workflow kind.
	ErrInvalidKind = errors.New("invalid workflow kind")
	// ErrIllegalTransition marks a status change outside the legal set.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrTaskNotFound marks lookups that matched no task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskBusy marks removal attempts against a processing task.
	ErrTaskBusy = errors.New("task is processing")
	// ErrSchemaMismatch indicates the database schema version is stale.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
