package worker

import (
	"context"
	"log/slog"
	"time"

	"docflow/internal/config"
	"docflow/internal/driver"
	"docflow/internal/logging"
	"docflow/internal/notifications"
	"docflow/internal/pipeline"
	"docflow/internal/queue"
	"docflow/internal/results"
)

// DriverFactory opens a fresh driver for one task run.
type DriverFactory func() (driver.Driver, error)

// Worker is the single consumer of the task queue. It claims one task
// at a time, runs it through its pipeline, records the outcome, and
// delivers the result payload. Stop only happens between tasks; a
// running task always finishes.
type Worker struct {
	store      *queue.Store
	executor   *pipeline.Executor
	newDriver  DriverFactory
	sender     *results.Sender
	notifier   notifications.Service
	logger     *slog.Logger
	poll       time.Duration
	cooldown   time.Duration
	errorRetry time.Duration
}

// New builds the worker from its collaborators.
func New(
	cfg *config.Config,
	store *queue.Store,
	executor *pipeline.Executor,
	newDriver DriverFactory,
	sender *results.Sender,
	notifier notifications.Service,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		store:      store,
		executor:   executor,
		newDriver:  newDriver,
		sender:     sender,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "worker"),
		poll:       durationSeconds(cfg.Workflow.QueuePollInterval, 10),
		cooldown:   durationSeconds(cfg.Workflow.TaskCooldown, 5),
		errorRetry: durationSeconds(cfg.Workflow.ErrorRetryInterval, 10),
	}
}

func durationSeconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// Run surfaces orphaned tasks once, then consumes the queue until the
// context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.surfaceOrphans(ctx)

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		task, err := w.store.DequeueNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("dequeue failed", logging.Error(err))
			if !w.sleep(ctx, w.errorRetry) {
				return nil
			}
			continue
		}

		if task == nil {
			if !w.sleep(ctx, w.poll) {
				return nil
			}
			continue
		}

		// Claim before running; DequeueNext itself never mutates.
		claimed, err := w.store.Transition(ctx, task.ID, queue.StatusProcessing, "")
		if err != nil {
			w.logger.Error("claim failed",
				logging.String(logging.FieldTaskID, task.ID),
				logging.Error(err),
			)
			if !w.sleep(ctx, w.errorRetry) {
				return nil
			}
			continue
		}

		// Cancellation is observed only between tasks. A claimed task
		// runs to its own completion or failure; a half-driven
		// document workflow is unsafe to interrupt.
		w.runTask(context.WithoutCancel(ctx), claimed)

		if !w.sleep(ctx, w.cooldown) {
			return nil
		}
	}
}

// surfaceOrphans reports tasks a previous run left in processing.
// They are never resumed automatically; an operator decides.
func (w *Worker) surfaceOrphans(ctx context.Context) {
	orphans, err := w.store.Orphans(ctx)
	if err != nil {
		w.logger.Error("orphan scan failed", logging.Error(err))
		return
	}
	if len(orphans) == 0 {
		return
	}
	for _, task := range orphans {
		w.logger.Error("orphaned task needs review",
			logging.String(logging.FieldTaskID, task.ID),
			logging.String(logging.FieldKind, string(task.Kind)),
		)
	}
	if err := w.notifier.NotifyOrphanedTasks(ctx, len(orphans)); err != nil {
		w.logger.Warn("orphan notification failed", logging.Error(err))
	}
}

func (w *Worker) runTask(ctx context.Context, task *queue.Task) {
	started := time.Now()
	logger := w.logger.With(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldKind, string(task.Kind)),
	)
	logger.Info("task started", logging.String("input_ref", task.InputRef))

	if err := w.notifier.NotifyTaskStarted(ctx, task); err != nil {
		logger.Warn("start notification failed", logging.Error(err))
	}

	outcome := w.execute(ctx, task, logger)

	if outcome.ReportPath != "" {
		if err := w.store.SetReportPath(ctx, task.ID, outcome.ReportPath); err != nil {
			logger.Warn("recording report path failed", logging.Error(err))
		}
	}

	final := w.finishTask(ctx, task, outcome, logger)
	w.deliver(ctx, final, outcome, logger)

	if final.Status == queue.StatusCompleted {
		if err := w.notifier.NotifyTaskCompleted(ctx, final, outcome.FinalRef, time.Since(started)); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
		logger.Info("task completed",
			logging.Duration("duration", time.Since(started)),
			logging.String("final_ref", outcome.FinalRef),
		)
		return
	}

	if err := w.notifier.NotifyTaskFailed(ctx, final, final.ErrorMessage); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
	logger.Error("task failed",
		logging.Duration("duration", time.Since(started)),
		logging.String("reason", final.ErrorMessage),
	)
}

func (w *Worker) execute(ctx context.Context, task *queue.Task, logger *slog.Logger) *pipeline.Outcome {
	drv, err := w.newDriver()
	if err != nil {
		logger.Error("driver construction failed", logging.Error(err))
		return &pipeline.Outcome{State: pipeline.StateAborted, FailedPhase: "acquire", Err: err, Message: err.Error()}
	}
	return w.executor.Run(ctx, task, drv)
}

// finishTask transitions the task to its terminal state and returns
// the stored task with terminal timestamps applied.
func (w *Worker) finishTask(ctx context.Context, task *queue.Task, outcome *pipeline.Outcome, logger *slog.Logger) *queue.Task {
	status := queue.StatusCompleted
	message := ""
	if outcome.State != pipeline.StateDone {
		status = queue.StatusFailed
		message = outcome.Message
	}

	updated, err := w.store.Transition(ctx, task.ID, status, message)
	if err != nil {
		logger.Error("terminal transition failed", logging.Error(err))
		task.Status = status
		task.ErrorMessage = message
		return task
	}
	return updated
}

// deliver sends the result payload regardless of run outcome, so the
// requesting side always learns how the task ended.
func (w *Worker) deliver(ctx context.Context, task *queue.Task, outcome *pipeline.Outcome, logger *slog.Logger) {
	summary := results.Summary{
		Total:     outcome.Succeeded + outcome.Failed + outcome.Skipped,
		Succeeded: outcome.Succeeded,
		Failed:    outcome.Failed,
		Skipped:   outcome.Skipped,
	}
	payload := results.Format(task, summary, outcome.FinalRef, outcome.Message)

	result, err := w.sender.Send(ctx, payload, outcome.ReportPath)
	if err != nil {
		logger.Error("result delivery failed",
			logging.Int("attempts", result.Attempts),
			logging.Error(err),
		)
		if notifyErr := w.notifier.NotifyError(ctx, err, "result delivery"); notifyErr != nil {
			logger.Warn("delivery failure notification failed", logging.Error(notifyErr))
		}
		return
	}
	if result.Skipped {
		logger.Debug("result delivery skipped")
		return
	}
	logger.Info("results delivered", logging.Int("attempts", result.Attempts))
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
