package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus validates and normalizes a status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// legalTransitions holds the only status changes Transition accepts.
// Terminal states never change again; retrying a failed task is a
// separate requeue that creates a new task.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

func transitionAllowed(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Kind identifies the document workflow a task runs.
type Kind string

const (
	KindPurchaseOrder  Kind = "purchase_order"
	KindReceipt        Kind = "receipt"
	KindFacturation    Kind = "facturation"
	KindReconciliation Kind = "reconciliation"
)

var allKinds = []Kind{
	KindPurchaseOrder,
	KindReceipt,
	KindFacturation,
	KindReconciliation,
}

// ParseKind validates and normalizes a workflow kind string.
func ParseKind(value string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allKinds {
		if kind == known {
			return kind, true
		}
	}
	return "", false
}

// Kinds returns the supported workflow kinds.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Task represents a queued workflow run persisted in SQLite.
type Task struct {
	ID        string
	Kind      Kind
	InputRef  string
	Requester string
	Status    Status
	// RetryOf holds the id of the failed task this one requeues,
	// empty for first runs.
	RetryOf      string
	ErrorMessage string
	ReportPath   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Stats counts tasks per status and per kind.
type Stats struct {
	ByStatus map[Status]int
	ByKind   map[Kind]int
	Total    int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}
