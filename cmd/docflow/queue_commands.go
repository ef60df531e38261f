package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docflow/internal/config"
	"docflow/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the task queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newQueueStatusCommand(ctx))
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueShowCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueHealthCommand(ctx))
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Pending", fmt.Sprintf("%d", health.Pending)},
					{"Processing", fmt.Sprintf("%d", health.Processing)},
					{"Completed", fmt.Sprintf("%d", health.Completed)},
					{"Failed", fmt.Sprintf("%d", health.Failed)},
					{"Total", fmt.Sprintf("%d", health.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"State", "Tasks"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFlag string
		kindFlag   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.ListFilter{Limit: limit}
			if statusFlag != "" {
				status, ok := queue.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				filter.Status = status
			}
			if kindFlag != "" {
				kind, ok := queue.ParseKind(kindFlag)
				if !ok {
					return fmt.Errorf("unknown kind %q (expected one of: %s)", kindFlag, kindList())
				}
				filter.Kind = kind
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				tasks, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						shortID(task.ID),
						string(task.Kind),
						string(task.Status),
						formatTime(task.CreatedAt),
						truncate(task.ErrorMessage, 48),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Kind", "Status", "Created", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Filter by workflow kind")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of tasks to show")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				task, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:         %s\n", task.ID)
				fmt.Fprintf(out, "Kind:       %s\n", task.Kind)
				fmt.Fprintf(out, "Status:     %s\n", task.Status)
				fmt.Fprintf(out, "Input:      %s\n", task.InputRef)
				if task.Requester != "" {
					fmt.Fprintf(out, "Requester:  %s\n", task.Requester)
				}
				if task.RetryOf != "" {
					fmt.Fprintf(out, "Retry of:   %s\n", task.RetryOf)
				}
				fmt.Fprintf(out, "Created:    %s\n", formatTime(task.CreatedAt))
				if task.StartedAt != nil {
					fmt.Fprintf(out, "Started:    %s\n", formatTime(*task.StartedAt))
				}
				if task.CompletedAt != nil {
					fmt.Fprintf(out, "Completed:  %s\n", formatTime(*task.CompletedAt))
				}
				if task.ReportPath != "" {
					fmt.Fprintf(out, "Report:     %s\n", task.ReportPath)
				}
				if task.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:      %s\n", task.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a completed or failed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				if err := store.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Requeue a failed task as a new task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				task, err := store.Requeue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s re-queued as %s\n", args[0], task.ID)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete completed tasks (or failed ones with --failed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var (
					cleared int64
					err     error
					label   string
				)
				if failedOnly {
					cleared, err = store.ClearFailed(cmd.Context())
					label = "failed"
				} else {
					cleared, err = store.ClearCompleted(cmd.Context())
					label = "completed"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s task(s)\n", cleared, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Clear failed tasks instead of completed ones")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run queue database diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health := store.CheckHealth(cmd.Context())

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderCheckLine("Database", checkInfo, health.DBPath, colorize))
				fmt.Fprintln(out, renderCheckLine("Exists", boolCheck(health.DatabaseExists), "", colorize))
				fmt.Fprintln(out, renderCheckLine("Readable", boolCheck(health.DatabaseReadable), "", colorize))
				fmt.Fprintln(out, renderCheckLine("Schema version", checkInfo, health.SchemaVersion, colorize))
				fmt.Fprintln(out, renderCheckLine("Tasks table", boolCheck(health.TableExists), "", colorize))
				fmt.Fprintln(out, renderCheckLine("Integrity", boolCheck(health.IntegrityCheck), "", colorize))
				fmt.Fprintln(out, renderCheckLine("Total tasks", checkInfo, fmt.Sprintf("%d", health.TotalTasks), colorize))
				if len(health.MissingColumns) > 0 {
					fmt.Fprintln(out, renderCheckLine("Missing columns", checkError, strings.Join(health.MissingColumns, ", "), colorize))
				}
				if health.Error != "" {
					fmt.Fprintln(out, renderCheckLine("Error", checkError, health.Error, colorize))
				}
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}
