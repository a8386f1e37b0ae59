package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/relay/pkg/eventlog"
)

func newReplayEventsCmd() *cobra.Command {
	var eventsPath, format string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "replay-events",
		Short: "Replay a recorded JSONL event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventsPath == "" {
				return fmt.Errorf("--events is required")
			}

			replayFormat := eventlog.ReplayText
			if format == "jsonl" {
				replayFormat = eventlog.ReplayJSONL
			}

			clean := true
			err := eventlog.Replay(eventsPath, replayFormat, func(rec eventlog.Record, rendered string) error {
				if !quiet {
					fmt.Println(rendered)
				}
				return nil
			})
			if err != nil {
				clean = false
				fmt.Fprintf(os.Stderr, "replay error: %v\n", err)
			}

			os.Exit(exitCode(clean))
			return nil
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "path to the recorded JSONL event log (required)")
	cmd.Flags().StringVar(&format, "format", "text", "replay format: text or jsonl")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress replayed output")

	return cmd
}
