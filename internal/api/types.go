package api

import (
	"time"

	"docflow/internal/queue"
)

// TaskDTO is the wire representation of a queue task.
type TaskDTO struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	InputRef     string `json:"input_ref"`
	Requester    string `json:"requester,omitempty"`
	Status       string `json:"status"`
	RetryOf      string `json:"retry_of,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	ReportPath   string `json:"report_path,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// EnqueueRequest asks for a new task.
type EnqueueRequest struct {
	Kind      string `json:"kind"`
	InputRef  string `json:"input_ref"`
	Requester string `json:"requester,omitempty"`
}

// StatusResponse summarizes the daemon queue.
type StatusResponse struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	Processing int            `json:"processing"`
	Completed  int            `json:"completed"`
	Failed     int            `json:"failed"`
	ByKind     map[string]int `json:"by_kind"`
}

// HealthResponse reports database diagnostics.
type HealthResponse struct {
	Healthy        bool     `json:"healthy"`
	DBPath         string   `json:"db_path"`
	SchemaVersion  string   `json:"schema_version,omitempty"`
	MissingColumns []string `json:"missing_columns,omitempty"`
	TotalTasks     int      `json:"total_tasks"`
	Error          string   `json:"error,omitempty"`
}

func toTaskDTO(task *queue.Task) TaskDTO {
	dto := TaskDTO{
		ID:           task.ID,
		Kind:         string(task.Kind),
		InputRef:     task.InputRef,
		Requester:    task.Requester,
		Status:       string(task.Status),
		RetryOf:      task.RetryOf,
		ErrorMessage: task.ErrorMessage,
		ReportPath:   task.ReportPath,
		CreatedAt:    task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    task.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if task.StartedAt != nil {
		dto.StartedAt = task.StartedAt.UTC().Format(time.RFC3339)
	}
	if task.CompletedAt != nil {
		dto.CompletedAt = task.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
