package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewChainCmd создаёт группу команд для управления chains.
func NewChainCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Manage chains",
	}

	cmd.AddCommand(
		newChainStartCmd(clientFn, outputFn),
		newChainStatusCmd(clientFn, outputFn),
		newChainActiveCmd(clientFn, outputFn),
	)

	return cmd
}

func newChainStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var req StartChainRequest
			if len(inputs) > 0 {
				req.Inputs = make(map[string]any)
				for _, kv := range inputs {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
					}
					req.Inputs[parts[0]] = parts[1]
				}
			}

			receipt, err := client.StartChain(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Chain started: %s", receipt.ChainID))
			out.Print(
				[]string{"CHAIN_ID", "STATUS", "TASKS", "STATUS_ENDPOINT"},
				[][]string{{
					receipt.ChainID,
					receipt.Status,
					strings.Join(receipt.TaskSequence, ","),
					receipt.StatusEndpoint,
				}},
				receipt,
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Initial context values as KEY=VALUE (repeatable)")

	return cmd
}

func newChainStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status CHAIN_ID",
		Short: "Show chain status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetChain(args[0])
			if err != nil {
				return err
			}

			progress := fmt.Sprintf("%d/%d (%.1f%%)",
				status.Progress.CompletedTasks,
				status.Progress.TotalTasks,
				status.Progress.Percentage,
			)

			out.Details([][2]string{
				{"CHAIN_ID", status.ChainID},
				{"STATUS", status.Status},
				{"PROGRESS", progress},
				{"TASKS", strings.Join(status.TaskSequence, ",")},
				{"CURRENT_TASK", status.CurrentTask},
				{"FAILED_TASK", status.FailedTask},
				{"ERROR", status.Error},
				{"STARTED", status.StartTime},
				{"UPDATED", status.LastUpdated},
				{"FINISHED", status.EndTime},
			}, status)

			if !out.jsonMode && len(status.CompletedTasks) > 0 {
				rows := make([][]string, len(status.CompletedTasks))
				for i, ct := range status.CompletedTasks {
					rows[i] = []string{ct.Task, strconv.Itoa(ct.Attempts), ct.CompletionTime}
				}
				fmt.Println()
				out.Table([]string{"TASK", "ATTEMPTS", "COMPLETED"}, rows)
			}
			return nil
		},
	}
}

func newChainActiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List running chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			active, err := client.ListActive()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(active))
			for id, c := range active {
				progress := fmt.Sprintf("%d/%d (%.1f%%)",
					c.Progress.CompletedTasks,
					c.Progress.TotalTasks,
					c.Progress.Percentage,
				)
				rows = append(rows, []string{id, c.CurrentTask, progress, c.LastUpdated})
			}

			out.Print([]string{"CHAIN_ID", "CURRENT_TASK", "PROGRESS", "UPDATED"}, rows, active)
			return nil
		},
	}
}
