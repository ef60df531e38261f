package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// SetReportPath records the checkpoint report produced for a task.
func (s *Store) SetReportPath(ctx context.Context, taskID, reportPath string) error {
	ctx = ensureContext(ctx)

	res, err := s.execWithRetry(ctx,
		"UPDATE tasks SET report_path = ?, updated_at = ? WHERE id = ?",
		nullableString(reportPath), formatTime(time.Now().UTC()), taskID)
	if err != nil {
		return fmt.Errorf("set report path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set report path: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

// Stats aggregates task counts by status and kind.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	ctx = ensureContext(ctx)

	stats := &Stats{
		ByStatus: make(map[Status]int),
		ByKind:   make(map[Kind]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, kind, COUNT(1) FROM tasks GROUP BY status, kind")
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			kind   string
			count  int
		)
		if err := rows.Scan(&status, &kind, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByStatus[Status(status)] += count
		stats.ByKind[Kind(kind)] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// Health summarizes queue counts for status displays.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ensureContext(ctx))
	if err != nil {
		return HealthSummary{}, err
	}
	return HealthSummary{
		Total:      stats.Total,
		Pending:    stats.ByStatus[StatusPending],
		Processing: stats.ByStatus[StatusProcessing],
		Completed:  stats.ByStatus[StatusCompleted],
		Failed:     stats.ByStatus[StatusFailed],
	}, nil
}

// CheckHealth runs database diagnostics without mutating anything.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	ctx = ensureContext(ctx)

	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			health.Error = err.Error()
		}
		return health
	}
	health.DatabaseExists = true

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health
	}
	health.DatabaseReadable = true
	health.SchemaVersion = fmt.Sprintf("%d", version)

	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='tasks'",
	).Scan(&tableExists); err != nil {
		health.Error = fmt.Sprintf("check tasks table: %v", err)
		return health
	}
	health.TableExists = tableExists > 0
	if !health.TableExists {
		health.Error = "tasks table missing"
		return health
	}

	required := []string{"id", "kind", "input_ref", "requester", "status", "retry_of", "error_message", "report_path", "created_at", "updated_at", "started_at", "completed_at"}
	present := make(map[string]bool, len(required))
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(tasks)")
	if err != nil {
		health.Error = fmt.Sprintf("inspect tasks columns: %v", err)
		return health
	}
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if scanErr := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); scanErr != nil {
			_ = rows.Close()
			health.Error = fmt.Sprintf("scan column info: %v", scanErr)
			return health
		}
		present[name] = true
	}
	_ = rows.Close()
	for _, col := range required {
		if !present[col] {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM tasks").Scan(&health.TotalTasks); err != nil {
		health.Error = fmt.Sprintf("count tasks: %v", err)
	}
	return health
}

// ClearCompleted deletes completed tasks and returns how many went.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCompleted)
}

// ClearFailed deletes failed tasks and returns how many went.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusFailed)
}

func (s *Store) clearByStatus(ctx context.Context, status Status) (int64, error) {
	ctx = ensureContext(ctx)

	res, err := s.execWithRetry(ctx, "DELETE FROM tasks WHERE status = ?", string(status))
	if err != nil {
		return 0, fmt.Errorf("clear %s tasks: %w", status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear %s tasks: %w", status, err)
	}
	return affected, nil
}

// PurgeTerminalBefore deletes completed and failed tasks whose
// completion predates the cutoff. Used by the maintenance schedule.
func (s *Store) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	res, err := s.execWithRetry(ctx,
		"DELETE FROM tasks WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?",
		string(StatusCompleted), string(StatusFailed), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge terminal tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge terminal tasks: %w", err)
	}
	return affected, nil
}
