package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docflow/internal/driver"
	"docflow/internal/input"
	"docflow/internal/logging"
	"docflow/internal/queue"
	"docflow/internal/report"
	"docflow/internal/services"
)

// State describes where a run ended.
type State string

const (
	StateDone    State = "done"
	StateAborted State = "aborted"
)

// Outcome summarizes one pipeline run.
type Outcome struct {
	State       State
	FinalRef    string
	ReportPath  string
	Succeeded   int
	Failed      int
	Skipped     int
	FailedPhase string
	Message     string
	Err         error
}

// Executor runs tasks through their pipeline with strict phase
// gating: the first unit failure aborts the run, remaining units are
// recorded as skipped, and later phases never start.
type Executor struct {
	registry  *Registry
	reportDir string
	logger    *slog.Logger
}

// NewExecutor builds an executor writing checkpoints to reportDir.
func NewExecutor(registry *Registry, reportDir string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		registry:  registry,
		reportDir: reportDir,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes one task against the driver. The returned outcome is
// always usable, even when the run aborted; Err carries the cause.
func (e *Executor) Run(ctx context.Context, task *queue.Task, drv driver.Driver) *Outcome {
	ctx = services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldKind, string(task.Kind)))

	pipe, err := e.registry.Lookup(task.Kind)
	if err != nil {
		return &Outcome{State: StateAborted, Err: err, Message: err.Error()}
	}

	writer, err := report.NewWriter(e.reportDir, string(task.Kind), time.Now())
	if err != nil {
		return &Outcome{State: StateAborted, Err: err, Message: err.Error()}
	}
	outcome := &Outcome{ReportPath: writer.Path()}

	logger.Info("reading input", logging.String("input_ref", task.InputRef))
	doc, err := input.Load(task.InputRef, pipe.RequiredFields(), logger)
	if err != nil {
		return e.abort(outcome, writer, "input", err, logger)
	}
	if doc.Dropped > 0 {
		logger.Warn("input rows dropped", logging.Int("dropped", doc.Dropped), logging.Int("kept", len(doc.Rows)))
	}

	plan, err := pipe.Build(doc)
	if err != nil {
		return e.abort(outcome, writer, "grouping", err, logger)
	}
	logger.Info("plan built",
		logging.Int("groups", plan.Grouping.Len()),
		logging.Int("phases", len(plan.Phases)),
	)

	if err := drv.Acquire(ctx); err != nil {
		return e.abort(outcome, writer, "acquire", err, logger)
	}
	defer func() {
		if releaseErr := drv.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logger.Warn("driver release failed", logging.Error(releaseErr))
		}
	}()

	for phaseIndex, phase := range plan.Phases {
		phaseCtx := services.WithPhase(ctx, phase.Name)
		phaseLogger := logging.WithContext(phaseCtx, logger)
		phaseLogger.Info("phase started", logging.Int("units", len(phase.Units)))

		for unitIndex, unit := range phase.Units {
			result, unitErr := unit.Run(phaseCtx, drv)
			if unitErr == nil && result.Success {
				outcome.Succeeded++
				writer.Append(report.Line{Phase: phase.Name, Key: unit.Key, Status: report.StatusOK, Message: result.Message})
				continue
			}

			message := result.Message
			if unitErr != nil {
				message = unitErr.Error()
			}
			outcome.Failed++
			writer.Append(report.Line{Phase: phase.Name, Key: unit.Key, Status: report.StatusFailed, Message: message})
			e.recordSkipped(outcome, writer, plan, phaseIndex, unitIndex)

			err := unitErr
			if err == nil {
				err = services.Wrap(services.ErrDriver, "pipeline", phase.Name,
					fmt.Sprintf("unit %s rejected: %s", unit.Key, result.Message), nil)
			}
			return e.abort(outcome, writer, phase.Name, err, phaseLogger)
		}

		if err := writer.Flush(); err != nil {
			return e.abort(outcome, writer, phase.Name, err, phaseLogger)
		}
		phaseLogger.Info("phase completed")
	}

	if plan.Finalize != nil {
		finalCtx := services.WithPhase(ctx, "finalize")
		ref, err := plan.Finalize(finalCtx, drv)
		if err != nil {
			return e.abort(outcome, writer, "finalize", err, logger)
		}
		outcome.FinalRef = ref
		writer.Append(report.Line{Phase: "finalize", Key: ref, Status: report.StatusOK})
	}

	if err := writer.Flush(); err != nil {
		return e.abort(outcome, writer, "finalize", err, logger)
	}

	outcome.State = StateDone
	outcome.Message = fmt.Sprintf("%d units processed", outcome.Succeeded)
	logger.Info("run completed",
		logging.Int("succeeded", outcome.Succeeded),
		logging.String("final_ref", outcome.FinalRef),
	)
	return outcome
}

// recordSkipped marks the rest of the failing phase and every later
// phase as skipped so the report shows the full blast radius.
func (e *Executor) recordSkipped(outcome *Outcome, writer *report.Writer, plan *Plan, failedPhase, failedUnit int) {
	for _, unit := range plan.Phases[failedPhase].Units[failedUnit+1:] {
		outcome.Skipped++
		writer.Append(report.Line{Phase: plan.Phases[failedPhase].Name, Key: unit.Key, Status: report.StatusSkipped, Message: "aborted"})
	}
	for _, phase := range plan.Phases[failedPhase+1:] {
		for _, unit := range phase.Units {
			outcome.Skipped++
			writer.Append(report.Line{Phase: phase.Name, Key: unit.Key, Status: report.StatusSkipped, Message: "aborted"})
		}
	}
}

func (e *Executor) abort(outcome *Outcome, writer *report.Writer, phase string, err error, logger *slog.Logger) *Outcome {
	outcome.State = StateAborted
	outcome.FailedPhase = phase
	outcome.Err = err
	outcome.Message = err.Error()
	if flushErr := writer.Flush(); flushErr != nil {
		logger.Error("checkpoint flush failed", logging.Error(flushErr))
	}
	logger.Error("run aborted",
		logging.String(logging.FieldPhase, phase),
		logging.Error(err),
	)
	return outcome
}
