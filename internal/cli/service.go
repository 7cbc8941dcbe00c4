package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewServiceCmd создаёт группу команд для discovery.
func NewServiceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Inspect discovered services",
	}

	cmd.AddCommand(
		newServiceListCmd(clientFn, outputFn),
		newServiceRefreshCmd(clientFn, outputFn),
	)

	return cmd
}

func newServiceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services from the discovery catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			catalog, err := client.ListServices()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TASK_QUEUE", "STATUS", "HEALTH", "ACTIVITIES"}
			rows := make([][]string, 0, len(catalog.Services))
			for _, svc := range catalog.Services {
				rows = append(rows, []string{
					svc.Name,
					svc.TaskQueue,
					svc.QueueStatus,
					svc.Health,
					strconv.Itoa(len(svc.Activities)),
				})
			}

			out.Print(headers, rows, catalog)
			return nil
		},
	}
}

func newServiceRefreshCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a discovery pass and reload configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.RefreshDiscovery()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Discovery refreshed: %v services", result["services"]))
			out.JSON(result)
			return nil
		},
	}
}
