package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для управления executions.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Manage executions",
	}

	cmd.AddCommand(
		newExecutionListCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionCancelCmd(clientFn, outputFn),
	)

	return cmd
}

// executionHeaders — колонки таблицы executions.
var executionHeaders = []string{"ID", "WORKFLOW", "TRIGGER", "STATUS", "ATTEMPT", "CREATED"}

func executionRow(out *Output, exec ExecutionResponse) []string {
	return []string{
		exec.ID, exec.WorkflowID, exec.TriggerKind, out.Status(exec.Status),
		strconv.Itoa(exec.Attempt), exec.CreatedAt,
	}
}

func newExecutionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			executions, err := client.ListExecutions(ListExecutionsOpts{
				WorkflowID: workflowID,
				Status:     status,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(executions))
			for i, exec := range executions {
				rows[i] = executionRow(out, exec)
			}

			out.Print(executionHeaders, rows, executions)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING/RUNNING/SUCCEEDED/FAILED/CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of executions")

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details, including node outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			if exec.Error != nil {
				out.Errorf("%s (node %s): %s",
					exec.Error.Code, exec.Error.NodeID, exec.Error.Message)
			}
			// Детали (node_outputs, error) видны в --json режиме.
			out.Print(executionHeaders, [][]string{executionRow(out, *exec)}, exec)
			return nil
		},
	}
}

func newExecutionCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelExecution(args[0]); err != nil {
				return err
			}

			out.Successf("Cancellation requested: %s", args[0])
			return nil
		},
	}
}

// NewStatusCmd создаёт команду статуса движка.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetStatus()
			if err != nil {
				return err
			}

			out.Print(
				[]string{"WORKERS_RUNNING", "WORKERS", "QUEUE_DEPTH", "NODE_TYPES"},
				[][]string{{
					strconv.FormatBool(status.WorkersRunning),
					strconv.Itoa(status.Workers),
					strconv.Itoa(status.QueueDepth),
					strconv.Itoa(status.NodeTypes),
				}},
				status,
			)
			return nil
		},
	}
}

// NewNodeTypesCmd создаёт команду каталога типов узлов.
func NewNodeTypesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "node-types",
		Short: "List registered node types",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			types, err := client.ListNodeTypes()
			if err != nil {
				return err
			}

			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t}
			}

			out.Print([]string{"TYPE"}, rows, types)
			return nil
		},
	}
}
