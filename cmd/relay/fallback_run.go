package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/backend"
)

func newFallbackRunCmd() *cobra.Command {
	var primary, prompt, format, output string
	var fallbacks []string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "fallback-run",
		Short: "Run a prompt against a primary backend, falling back in order on failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			if primary == "" || prompt == "" {
				return fmt.Errorf("--primary and --prompt are required")
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

			primaryTask := backend.Task{Backend: primary, Prompt: prompt}
			var fallbackTasks []backend.Task
			for _, f := range fallbacks {
				fallbackTasks = append(fallbackTasks, backend.Task{Backend: f, Prompt: prompt})
			}

			result, err := orch.RunFallback(context.Background(), primaryTask, fallbackTasks, sink)
			if err != nil {
				return err
			}

			if !quiet && result.Metadata != nil {
				fmt.Fprintln(os.Stderr, result.Metadata.SummaryLine())
			}
			if result.Degraded && !quiet {
				fmt.Fprintf(os.Stderr, "degraded: succeeded on %s after primary failed\n", result.Backend)
			}

			logger.GetLogger().Info().Str("backend", result.Backend).Bool("success", result.Success).Bool("degraded", result.Degraded).Msg("fallback-run finished")

			out.Close()
			os.Exit(exitCode(result.Success))
			return nil
		},
	}

	cmd.Flags().StringVar(&primary, "primary", "", "primary backend identifier (required)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text (required)")
	cmd.Flags().StringArrayVar(&fallbacks, "fallback", nil, "fallback backend identifier, repeatable, tried in order")
	cmd.Flags().StringVar(&format, "format", "text", "output format: jsonl or text")
	cmd.Flags().StringVar(&output, "output", "", "write streamed output to this file instead of stdout")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress streamed output and summary line")

	return cmd
}
