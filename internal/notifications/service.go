package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docflow/internal/config"
	"docflow/internal/queue"
)

const userAgent = "Docflow-Go/0.1.0"

// Service defines the notification surface exposed to workflow
// components.
type Service interface {
	NotifyTaskStarted(ctx context.Context, task *queue.Task) error
	NotifyTaskCompleted(ctx context.Context, task *queue.Task, finalRef string, duration time.Duration) error
	NotifyTaskFailed(ctx context.Context, task *queue.Task, reason string) error
	NotifyOrphanedTasks(ctx context.Context, count int) error
	NotifyError(ctx context.Context, err error, scope string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. Without an ntfy topic a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		tasks:    cfg.Notifications.Tasks,
		errors:   cfg.Notifications.Errors,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	tasks    bool
	errors   bool
	client   *http.Client
}

func (n *ntfyService) NotifyTaskStarted(ctx context.Context, task *queue.Task) error {
	if !n.tasks {
		return nil
	}
	data := payload{
		title:   "Docflow - Task Started",
		message: fmt.Sprintf("Started %s task %s", task.Kind, task.ID),
		tags:    []string{"docflow", "task", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskCompleted(ctx context.Context, task *queue.Task, finalRef string, duration time.Duration) error {
	if !n.tasks {
		return nil
	}
	message := fmt.Sprintf("Completed %s task %s in %s", task.Kind, task.ID, duration.Round(time.Second))
	if finalRef != "" {
		message += fmt.Sprintf(" (document %s)", finalRef)
	}
	data := payload{
		title:   "Docflow - Task Completed",
		message: message,
		tags:    []string{"docflow", "task", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, task *queue.Task, reason string) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "Docflow - Task Failed",
		message:  fmt.Sprintf("Task %s (%s) failed: %s", task.ID, task.Kind, strings.TrimSpace(reason)),
		tags:     []string{"docflow", "task", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrphanedTasks(ctx context.Context, count int) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "Docflow - Orphaned Tasks",
		message:  fmt.Sprintf("%d task(s) were left processing by a previous run and need review", count),
		tags:     []string{"docflow", "queue", "orphaned"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, scope string) error {
	if !n.errors {
		return nil
	}
	message := "Unknown error"
	if err != nil {
		message = err.Error()
	}
	if scope = strings.TrimSpace(scope); scope != "" {
		message = fmt.Sprintf("%s: %s", scope, message)
	}
	data := payload{
		title:    "Docflow - Error",
		message:  message,
		tags:     []string{"docflow", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Docflow - Test",
		message: "Notification configuration works",
		tags:    []string{"docflow", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTaskStarted(context.Context, *queue.Task) error { return nil }
func (noopService) NotifyTaskCompleted(context.Context, *queue.Task, string, time.Duration) error {
	return nil
}
func (noopService) NotifyTaskFailed(context.Context, *queue.Task, string) error { return nil }
func (noopService) NotifyOrphanedTasks(context.Context, int) error              { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
