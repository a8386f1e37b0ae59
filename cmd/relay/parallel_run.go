package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/backend"
	"github.com/ternarybob/relay/pkg/eventlog"
	"github.com/ternarybob/relay/pkg/stream"
)

func newParallelRunCmd() *cobra.Command {
	var prompt, backendsCSV, outputDir, format string
	var workers int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "parallel-run",
		Short: "Run a prompt against multiple backends concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt is required")
			}

			orch, err := loadOrchestrator()
			if err != nil {
				return err
			}

			backendIDs := strings.Split(backendsCSV, ",")
			var tasks []backend.Task
			for _, id := range backendIDs {
				id = strings.TrimSpace(id)
				if id == "" {
					continue
				}
				tasks = append(tasks, backend.Task{Backend: id, Prompt: prompt})
			}

			runID := backend.NewRunID()
			var recordersMu sync.Mutex
			var recorders []*eventlog.Recorder

			sinkFor := func(task backend.Task) stream.Sink {
				if quiet {
					return nil
				}
				if outputDir == "" {
					return newCLISink(os.Stdout, format, false)
				}
				if err := os.MkdirAll(outputDir, 0755); err != nil {
					return nil
				}

				logFile, err := os.Create(filepath.Join(outputDir, task.Backend+".log"))
				if err != nil {
					return nil
				}
				logSink := newCLISink(logFile, format, false)

				recorder, err := eventlog.NewRecorder(filepath.Join(outputDir, task.Backend+".jsonl"))
				if err != nil {
					return logSink
				}
				recordersMu.Lock()
				recorders = append(recorders, recorder)
				recordersMu.Unlock()

				return &teeSink{a: logSink, b: stream.SinkFunc(recorder.Sink(runID, task.Backend, ""))}
			}

			result, err := orch.RunParallel(context.Background(), tasks, workers, sinkFor)
			for _, rec := range recorders {
				rec.Close()
			}
			if err != nil {
				return err
			}

			for _, id := range backendIDs {
				id = strings.TrimSpace(id)
				if r, ok := result.Results[id]; ok && !quiet && r.Metadata != nil {
					fmt.Fprintf(os.Stderr, "%s: %s\n", id, r.Metadata.SummaryLine())
				}
			}

			logger.GetLogger().Info().Bool("any_succeeded", result.AnySucceeded).Msg("parallel-run finished")

			os.Exit(exitCode(result.AnySucceeded))
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text (required)")
	cmd.Flags().StringVar(&backendsCSV, "backends", "A,B,C", "comma-separated backend identifiers")
	cmd.Flags().IntVar(&workers, "workers", 3, "maximum concurrent backends")
	cmd.Flags().StringVar(&outputDir, "output", "", "directory to write one log file per backend instead of stdout")
	cmd.Flags().StringVar(&format, "format", "text", "output format: jsonl or text")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress streamed output and summary lines")

	return cmd
}
