package api

import (
	"context"
	"fmt"
	"strings"

	"docflow/internal/queue"
	"docflow/internal/services"
)

// QueueService exposes queue operations to the HTTP layer with
// wire-level types and classified errors.
type QueueService struct {
	store *queue.Store
}

// NewQueueService wraps a store.
func NewQueueService(store *queue.Store) *QueueService {
	return &QueueService{store: store}
}

// Enqueue validates the request and inserts a pending task.
func (s *QueueService) Enqueue(ctx context.Context, req EnqueueRequest) (TaskDTO, error) {
	kind, ok := queue.ParseKind(req.Kind)
	if !ok {
		return TaskDTO{}, services.Wrap(services.ErrValidation, "api", "enqueue",
			fmt.Sprintf("unknown kind %q", req.Kind), nil)
	}
	if strings.TrimSpace(req.InputRef) == "" {
		return TaskDTO{}, services.Wrap(services.ErrValidation, "api", "enqueue", "input_ref is required", nil)
	}

	task, err := s.store.Enqueue(ctx, kind, req.InputRef, req.Requester)
	if err != nil {
		return TaskDTO{}, err
	}
	return toTaskDTO(task), nil
}

// List returns tasks, optionally filtered by status and kind.
func (s *QueueService) List(ctx context.Context, statusValue, kindValue string, limit int) ([]TaskDTO, error) {
	filter := queue.ListFilter{Limit: limit}
	if statusValue != "" {
		status, ok := queue.ParseStatus(statusValue)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown status %q", statusValue), nil)
		}
		filter.Status = status
	}
	if kindValue != "" {
		kind, ok := queue.ParseKind(kindValue)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown kind %q", kindValue), nil)
		}
		filter.Kind = kind
	}

	tasks, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, task := range tasks {
		dtos = append(dtos, toTaskDTO(task))
	}
	return dtos, nil
}

// Get loads one task.
func (s *QueueService) Get(ctx context.Context, id string) (TaskDTO, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return TaskDTO{}, err
	}
	return toTaskDTO(task), nil
}

// Remove deletes a terminal task; pending and processing tasks are busy.
func (s *QueueService) Remove(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

// Retry creates a fresh pending task from a failed one. The failed
// record is left as is.
func (s *QueueService) Retry(ctx context.Context, id string) (TaskDTO, error) {
	task, err := s.store.Requeue(ctx, id)
	if err != nil {
		return TaskDTO{}, err
	}
	return toTaskDTO(task), nil
}

// Status aggregates queue counts.
func (s *QueueService) Status(ctx context.Context) (StatusResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	resp := StatusResponse{
		Total:      stats.Total,
		Pending:    stats.ByStatus[queue.StatusPending],
		Processing: stats.ByStatus[queue.StatusProcessing],
		Completed:  stats.ByStatus[queue.StatusCompleted],
		Failed:     stats.ByStatus[queue.StatusFailed],
		ByKind:     make(map[string]int, len(stats.ByKind)),
	}
	for kind, count := range stats.ByKind {
		resp.ByKind[string(kind)] = count
	}
	return resp, nil
}

// Health runs database diagnostics.
func (s *QueueService) Health(ctx context.Context) HealthResponse {
	health := s.store.CheckHealth(ctx)
	return HealthResponse{
		Healthy:        health.Error == "" && health.IntegrityCheck && len(health.MissingColumns) == 0,
		DBPath:         health.DBPath,
		SchemaVersion:  health.SchemaVersion,
		MissingColumns: health.MissingColumns,
		TotalTasks:     health.TotalTasks,
		Error:          health.Error,
	}
}
