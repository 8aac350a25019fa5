package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowUpdateCmd(clientFn, outputFn),
		newWorkflowDeleteCmd(clientFn, outputFn),
		newWorkflowActivateCmd(clientFn, outputFn),
		newWorkflowDeactivateCmd(clientFn, outputFn),
		newWorkflowValidateCmd(clientFn, outputFn),
		newWorkflowRunCmd(clientFn, outputFn),
	)

	return cmd
}

// workflowHeaders — колонки таблицы workflows.
var workflowHeaders = []string{"ID", "NAME", "ACTIVE", "TRIGGER", "NODES", "UPDATED"}

func workflowRow(wf WorkflowResponse) []string {
	return []string{
		wf.ID, wf.Name, strconv.FormatBool(wf.IsActive),
		wf.Trigger.Kind, strconv.Itoa(len(wf.Nodes)), wf.UpdatedAt,
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = workflowRow(wf)
			}

			out.Print(workflowHeaders, rows, workflows)
			return nil
		},
	}
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow from a JSON definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			definition, err := readDefinition(file)
			if err != nil {
				return err
			}

			wf, err := client.CreateWorkflow(definition)
			if err != nil {
				return err
			}

			out.Successf("Workflow created: %s", wf.ID)
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to workflow definition JSON (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}
}

func newWorkflowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a workflow from a JSON definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			definition, err := readDefinition(file)
			if err != nil {
				return err
			}

			wf, err := client.UpdateWorkflow(args[0], definition)
			if err != nil {
				return err
			}

			out.Successf("Workflow updated")
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to workflow definition JSON (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteWorkflow(args[0]); err != nil {
				return err
			}

			out.Successf("Workflow deleted: %s", args[0])
			return nil
		},
	}
}

func newWorkflowActivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Activate a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.SetWorkflowActive(args[0], true); err != nil {
				return err
			}

			out.Successf("Workflow activated: %s", args[0])
			return nil
		},
	}
}

func newWorkflowDeactivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.SetWorkflowActive(args[0], false); err != nil {
				return err
			}

			out.Successf("Workflow deactivated: %s", args[0])
			return nil
		},
	}
}

func newWorkflowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow definition without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			definition, err := readDefinition(file)
			if err != nil {
				return err
			}

			if err := client.ValidateWorkflow(definition); err != nil {
				return err
			}

			out.Successf("Workflow definition is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to workflow definition JSON (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Trigger a workflow manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var data map[string]any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &data); err != nil {
					return fmt.Errorf("invalid payload JSON: %w", err)
				}
			}

			exec, err := client.RunWorkflow(args[0], data)
			if err != nil {
				return err
			}

			out.Successf("Execution started: %s", exec.ID)
			out.Print(executionHeaders, [][]string{executionRow(out, *exec)}, exec)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "Trigger payload as JSON object")

	return cmd
}

// readDefinition читает JSON-определение workflow из файла.
func readDefinition(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("definition file %s is not valid JSON", path)
	}
	return data, nil
}
