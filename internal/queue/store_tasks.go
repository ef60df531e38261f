package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enqueue inserts a new pending task and returns it.
func (s *Store) Enqueue(ctx context.Context, kind Kind, inputRef, requester string) (*Task, error) {
	ctx = ensureContext(ctx)

	normalized, ok := ParseKind(string(kind))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	inputRef = strings.TrimSpace(inputRef)
	if inputRef == "" {
		return nil, fmt.Errorf("%w: empty input reference", ErrInvalidKind)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.NewString(),
		Kind:      normalized,
		InputRef:  inputRef,
		Requester: strings.TrimSpace(requester),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.execWithRetry(ctx,
		"INSERT INTO tasks (id, kind, input_ref, requester, status, retry_of, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		task.ID,
		string(task.Kind),
		task.InputRef,
		nullableString(task.Requester),
		string(task.Status),
		nullableString(task.RetryOf),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// Requeue creates a fresh pending task that retries a failed one.
// The failed record stays untouched; the new task carries the same
// kind, input reference and requester and points back via RetryOf.
func (s *Store) Requeue(ctx context.Context, taskID string) (*Task, error) {
	ctx = ensureContext(ctx)

	source, err := s.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if source.Status != StatusFailed {
		return nil, fmt.Errorf("%w: requeue of %s task", ErrIllegalTransition, source.Status)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.NewString(),
		Kind:      source.Kind,
		InputRef:  source.InputRef,
		Requester: source.Requester,
		Status:    StatusPending,
		RetryOf:   source.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.execWithRetry(ctx,
		"INSERT INTO tasks (id, kind, input_ref, requester, status, retry_of, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		task.ID,
		string(task.Kind),
		task.InputRef,
		nullableString(task.Requester),
		string(task.Status),
		task.RetryOf,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert requeued task: %w", err)
	}
	return task, nil
}

// DequeueNext returns the oldest pending task without mutating it,
// or nil when the queue is empty. Claiming is a separate Transition
// to processing; the single-consumer worker calls it immediately
// after.
func (s *Store) DequeueNext(ctx context.Context) (*Task, error) {
	ctx = ensureContext(ctx)

	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		string(StatusPending),
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select pending task: %w", err)
	}
	return task, nil
}

// Transition moves a task between statuses, enforcing the legal set.
// Terminal transitions stamp completed_at; failed transitions record
// the error message. Terminal tasks never transition again.
func (s *Store) Transition(ctx context.Context, taskID string, to Status, errorMessage string) (*Task, error) {
	ctx = ensureContext(ctx)

	if _, ok := statusSet[to]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, to)
	}

	var updated *Task
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transition tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID)
		task, scanErr := scanTask(row)
		if scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
			}
			return fmt.Errorf("load task %s: %w", taskID, scanErr)
		}

		if !transitionAllowed(task.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, task.Status, to)
		}

		now := time.Now().UTC()
		task.UpdatedAt = now
		task.Status = to

		switch to {
		case StatusProcessing:
			task.StartedAt = &now
			task.ErrorMessage = ""
			_, err = tx.ExecContext(ctx,
				"UPDATE tasks SET status = ?, started_at = ?, error_message = NULL, updated_at = ? WHERE id = ?",
				string(to), formatTime(now), formatTime(now), taskID)
		case StatusCompleted:
			task.CompletedAt = &now
			task.ErrorMessage = ""
			_, err = tx.ExecContext(ctx,
				"UPDATE tasks SET status = ?, completed_at = ?, error_message = NULL, updated_at = ? WHERE id = ?",
				string(to), formatTime(now), formatTime(now), taskID)
		case StatusFailed:
			task.CompletedAt = &now
			task.ErrorMessage = strings.TrimSpace(errorMessage)
			_, err = tx.ExecContext(ctx,
				"UPDATE tasks SET status = ?, completed_at = ?, error_message = ?, updated_at = ? WHERE id = ?",
				string(to), formatTime(now), nullableString(task.ErrorMessage), formatTime(now), taskID)
		}
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transition: %w", err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetByID loads a task by its identifier.
func (s *Store) GetByID(ctx context.Context, taskID string) (*Task, error) {
	ctx = ensureContext(ctx)

	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return task, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status Status
	Kind   Kind
	Limit  int
}

// List returns tasks in creation order, optionally filtered.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	ctx = ensureContext(ctx)

	query := "SELECT " + taskColumns + " FROM tasks"
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan task: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// Remove deletes a terminal task. Pending and processing tasks are
// busy and cannot be removed.
func (s *Store) Remove(ctx context.Context, taskID string) error {
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin remove tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var status string
		err = tx.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", taskID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
			}
			return fmt.Errorf("load task %s: %w", taskID, err)
		}
		if !Status(status).IsTerminal() {
			return fmt.Errorf("%w: %s", ErrTaskBusy, taskID)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID); err != nil {
			return fmt.Errorf("delete task %s: %w", taskID, err)
		}
		return tx.Commit()
	})
}

// Orphans returns tasks stuck in processing. These are tasks a
// previous daemon run claimed but never finished.
func (s *Store) Orphans(ctx context.Context) ([]*Task, error) {
	return s.List(ensureContext(ctx), ListFilter{Status: StatusProcessing})
}
