package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/backend"
)

func newRunTaskCmd() *cobra.Command {
	var backendID, prompt, model, modelProvider, format, output string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run-task",
		Short: "Run a single prompt against one backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if backendID == "" || prompt == "" {
				return fmt.Errorf("--backend and --prompt are required")
			}

			orch, err := loadOrchestrator()
			if err != nil {
				return err
			}

			out, err := openOutput(output)
			if err != nil {
				return err
			}
			defer out.Close()

			sink := newCLISink(out, format, quiet)

			task := backend.Task{Backend: backendID, Prompt: prompt, Model: model, ModelProvider: modelProvider}
			result, err := orch.RunTask(context.Background(), task, sink)
			if err != nil {
				return err
			}

			if !quiet && result.Metadata != nil {
				fmt.Fprintln(os.Stderr, result.Metadata.SummaryLine())
			}

			logger.GetLogger().Info().Str("backend", backendID).Bool("success", result.Success).Msg("run-task finished")

			out.Close()
			os.Exit(exitCode(result.Success))
			return nil
		},
	}

	cmd.Flags().StringVar(&backendID, "backend", "", "backend identifier (required)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text (required)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&modelProvider, "model-provider", "", "model provider override")
	cmd.Flags().StringVar(&format, "format", "text", "output format: jsonl or text")
	cmd.Flags().StringVar(&output, "output", "", "write streamed output to this file instead of stdout")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress streamed output and summary line")

	return cmd
}
