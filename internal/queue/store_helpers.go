package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, kind, input_ref, requester, status, retry_of, error_message, report_path, created_at, updated_at, started_at, completed_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id           string
		kindStr      string
		inputRef     string
		requester    sql.NullString
		statusStr    string
		retryOf      sql.NullString
		errorMessage sql.NullString
		reportPath   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kindStr,
		&inputRef,
		&requester,
		&statusStr,
		&retryOf,
		&errorMessage,
		&reportPath,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		Kind:         Kind(kindStr),
		InputRef:     inputRef,
		Requester:    requester.String,
		Status:       Status(statusStr),
		RetryOf:      retryOf.String,
		ErrorMessage: errorMessage.String,
		ReportPath:   reportPath.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
