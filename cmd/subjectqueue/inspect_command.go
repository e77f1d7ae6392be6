package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/classifyhub/subject-queue/internal/domain"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var (
		workflowID int64
		low        bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List queues of a workflow, or every queue below the minimum",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == 0 && !low {
				return fmt.Errorf("pass --workflow or --below-minimum")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.close()

			var queues []*domain.Queue
			if low {
				queues, err = a.queues.BelowMinimum(cmd.Context())
			} else {
				queues, err = a.queues.ListByWorkflow(cmd.Context(), workflowID)
			}
			if err != nil {
				return err
			}

			if len(queues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No queues")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderQueues(queues))
			return nil
		},
	}

	cmd.Flags().Int64VarP(&workflowID, "workflow", "w", 0, "Workflow ID")
	cmd.Flags().BoolVar(&low, "below-minimum", false, "Show queues holding fewer subjects than the refill threshold")
	return cmd
}

func renderQueues(queues []*domain.Queue) string {
	rows := make([][]string, 0, len(queues))
	for _, q := range queues {
		rows = append(rows, []string{
			strconv.FormatInt(q.ID, 10),
			strconv.FormatInt(q.WorkflowID, 10),
			optionalID(q.UserID),
			optionalID(q.SubjectSetID),
			strconv.Itoa(q.Len()),
			strconv.FormatInt(q.LockVersion, 10),
			q.UpdatedAt.Format(time.RFC3339),
		})
	}
	return renderTable(
		[]string{"ID", "Workflow", "User", "Subject Set", "Size", "Version", "Updated"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}
