package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для работы с pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineRunCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STEPS", "SOURCE"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				steps := make([]string, len(p.Steps))
				for j, s := range p.Steps {
					steps[j] = s.Activity
				}
				source := "configured"
				if p.Inferred {
					source = "inferred"
				}
				rows[i] = []string{p.Name, strings.Join(steps, " -> "), source}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputJSON string
	var inputFile string

	cmd := &cobra.Command{
		Use:   "run PIPELINE",
		Short: "Execute a pipeline and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := readInput(inputJSON, inputFile)
			if err != nil {
				return err
			}

			run, err := client.ExecutePipeline(args[0], input)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %s: %s", run.Status, run.ID))
			printRun(out, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input", "", "Pipeline input as a JSON value")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Read pipeline input JSON from file (- for stdin)")

	return cmd
}

// readInput собирает вход pipeline из флагов.
func readInput(inputJSON, inputFile string) (any, error) {
	var raw []byte
	switch {
	case inputJSON != "" && inputFile != "":
		return nil, fmt.Errorf("--input and --input-file are mutually exclusive")
	case inputJSON != "":
		raw = []byte(inputJSON)
	case inputFile == "-":
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = data
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", inputFile, err)
		}
		raw = data
	default:
		return nil, nil
	}

	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		// Не JSON — трактуем как голую строку (частый случай: поисковый запрос)
		return string(raw), nil
	}
	return input, nil
}

// printRun выводит run c trace.
func printRun(out *Output, run *RunResponse) {
	headers := []string{"STEP", "ACTIVITY", "STATUS", "SUMMARY"}
	rows := make([][]string, len(run.Trace))
	for i, t := range run.Trace {
		summary := t.Summary
		if t.Error != "" {
			summary = t.Error
		}
		rows[i] = []string{strconv.Itoa(t.StepIndex), t.Activity, t.Status, summary}
	}
	out.Print(headers, rows, run)
}
