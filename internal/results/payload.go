package results

import (
	"time"

	"docflow/internal/queue"
)

// Summary counts the units a run processed.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Payload is the result document delivered after a task run. The
// shape is stable regardless of transport mode.
type Payload struct {
	TaskID      string  `json:"task_id"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	FinalRef    string  `json:"final_ref,omitempty"`
	Requester   string  `json:"requester,omitempty"`
	Summary     Summary `json:"summary"`
	ReportPath  string  `json:"report_path,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
}

// Attachment is the embedded file representation used by base64 mode.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	MimeType string `json:"mimetype"`
}

// envelope is the base64 mode wire shape: payload plus inline file.
type envelope struct {
	Payload
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Format builds the delivery payload from a finished task and its run
// counts. Timestamps are rendered in RFC 3339 so the receiving side
// never sees locale-dependent formats.
func Format(task *queue.Task, summary Summary, finalRef, message string) Payload {
	p := Payload{
		TaskID:     task.ID,
		Kind:       string(task.Kind),
		Status:     string(task.Status),
		Message:    message,
		FinalRef:   finalRef,
		Requester:  task.Requester,
		ReportPath: task.ReportPath,
		Summary:    summary,
	}
	if task.StartedAt != nil {
		p.StartedAt = task.StartedAt.UTC().Format(time.RFC3339)
	}
	if task.CompletedAt != nil {
		p.CompletedAt = task.CompletedAt.UTC().Format(time.RFC3339)
	}
	return p
}
