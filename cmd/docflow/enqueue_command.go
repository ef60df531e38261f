package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docflow/internal/config"
	"docflow/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var requester string

	cmd := &cobra.Command{
		Use:   "enqueue <kind> <input-file>",
		Short: "Queue a workflow task for the daemon",
		Long: "Queue a workflow task. Kind is one of: " + kindList() + ".\n" +
			"The input file path is stored as given after being made absolute.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := queue.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown workflow kind %q (expected one of: %s)", args[0], kindList())
			}

			inputRef, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				task, err := store.Enqueue(cmd.Context(), kind, inputRef, requester)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s task %s\n", task.Kind, task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&requester, "requester", "", "Who asked for this task (recorded on the result payload)")
	return cmd
}

func kindList() string {
	kinds := queue.Kinds()
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return strings.Join(names, ", ")
}
