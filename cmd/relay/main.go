// Command relay is the CLI surface for the cross-backend execution
// orchestrator: it dispatches prompts to configured backend processes
// (run-task, fallback-run, parallel-run, pipeline) and replays recorded
// event logs (replay-events), one cobra subcommand per verb.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/relay/internal/config"
	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/backend"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Cross-backend execution orchestrator",
	Long:  `relay dispatches prompts to opaque backend processes, streaming their output and composing invocations into fallback, parallel, and pipeline strategies.`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newRunTaskCmd())
	rootCmd.AddCommand(newFallbackRunCmd())
	rootCmd.AddCommand(newParallelRunCmd())
	rootCmd.AddCommand(newPipelineCmd())
	rootCmd.AddCommand(newReplayEventsCmd())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relay %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadOrchestrator resolves configuration, initializes logging, and builds
// an Orchestrator from the configured adapter manifest. Shared setup for
// every verb that dispatches a backend task.
func loadOrchestrator() (*backend.Orchestrator, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.SetupLogger(cfg)

	manifest, err := config.LoadAdapterManifest(cfg.Router.AdaptersPath)
	if err != nil {
		return nil, fmt.Errorf("load adapter manifest: %w", err)
	}

	adapters := backend.NewRegistry()
	for id, spec := range manifest.Adapter {
		adapters.Register(backend.Adapter{
			ID:             id,
			Executable:     spec.Executable,
			Args:           spec.Args,
			Env:            spec.Env,
			PromptViaStdin: spec.PromptViaStdin,
			StreamDialect:  spec.StreamDialect,
		})
	}

	return backend.NewOrchestrator(adapters), nil
}

// exitCode maps a verb's outcome to the CLI's exit status.
func exitCode(success bool) int {
	if success {
		return 0
	}
	return 1
}
