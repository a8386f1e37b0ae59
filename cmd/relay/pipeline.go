package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/backend"
	"github.com/ternarybob/relay/pkg/stream"
)

func newPipelineCmd() *cobra.Command {
	var stageSpecs []string
	var noPassOutput bool
	var outputDir, format string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run a sequence of backend stages, stopping at the first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(stageSpecs) == 0 {
				return fmt.Errorf("at least one --stage is required")
			}

			orch, err := loadOrchestrator()
			if err != nil {
				return err
			}

			stages, err := parseStages(stageSpecs)
			if err != nil {
				return err
			}

			var out *os.File
			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
				out, err = os.Create(filepath.Join(outputDir, "pipeline.log"))
				if err != nil {
					return fmt.Errorf("create pipeline log: %w", err)
				}
				defer out.Close()
			}

			var sink stream.Sink
			if !quiet {
				w := os.Stdout
				if out != nil {
					sink = newCLISink(out, format, false)
				} else {
					sink = newCLISink(w, format, false)
				}
			}

			result, err := orch.RunPipeline(context.Background(), stages, !noPassOutput, sink)
			if err != nil {
				return err
			}

			if !quiet {
				for _, stage := range result.Stages {
					if stage.Result.Metadata != nil {
						fmt.Fprintf(os.Stderr, "%s: %s\n", stage.Backend, stage.Result.Metadata.SummaryLine())
					}
				}
			}

			logger.GetLogger().Info().Bool("success", result.Success).Int("stages", len(result.Stages)).Msg("pipeline finished")

			if out != nil {
				out.Close()
			}
			os.Exit(exitCode(result.Success))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&stageSpecs, "stage", nil, `stage as "<backend>:<prompt>", repeatable, in order`)
	cmd.Flags().BoolVar(&noPassOutput, "no-pass-output", false, "don't append each stage's output to the next stage's prompt")
	cmd.Flags().StringVar(&outputDir, "output", "", "directory to write the pipeline's combined log instead of stdout")
	cmd.Flags().StringVar(&format, "format", "text", "output format: jsonl or text")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress streamed output and summary lines")

	return cmd
}

// parseStages parses "<backend>:<prompt>" specs into Tasks, in input order.
func parseStages(specs []string) ([]backend.Task, error) {
	stages := make([]backend.Task, 0, len(specs))
	for _, spec := range specs {
		idx := strings.Index(spec, ":")
		if idx < 0 {
			return nil, fmt.Errorf(`invalid --stage %q: expected "<backend>:<prompt>"`, spec)
		}
		stages = append(stages, backend.Task{
			Backend: spec[:idx],
			Prompt:  spec[idx+1:],
		})
	}
	return stages, nil
}
