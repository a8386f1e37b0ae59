// Package backend implements the Backend Orchestrator: spawning opaque
// backend processes, streaming their stdout without buffering it, and
// composing invocations into fallback, parallel, and pipeline strategies.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/metadata"
	"github.com/ternarybob/relay/pkg/stream"
)

const maxCapturedStderr = 8 * 1024

// Task is a single request to a backend: which backend, what prompt, and
// the optional model selection.
type Task struct {
	Backend       string
	Prompt        string
	Model         string
	ModelProvider string
}

// TaskResult is the outcome of one backend invocation. Output is always
// empty: output is streamed to the sink as it happens and never retained
// here. Metadata carries everything the caller needs to know about what
// happened.
type TaskResult struct {
	Backend  string                      `json:"backend"`
	Success  bool                        `json:"success"`
	Error    string                      `json:"error,omitempty"`
	Output   string                      `json:"output"`
	Metadata *metadata.ExecutionMetadata `json:"metadata,omitempty"`
	Degraded bool                        `json:"degraded,omitempty"`
}

// Orchestrator runs tasks against adapters registered in a Registry.
type Orchestrator struct {
	registry *Registry
	handler  *stream.Handler
}

// NewOrchestrator returns an Orchestrator bound to a Registry of adapters.
func NewOrchestrator(registry *Registry) *Orchestrator {
	return &Orchestrator{registry: registry, handler: stream.NewHandler()}
}

// RunTask spawns the backend process for task and streams its stdout
// through sink (which may be nil) while tracking metadata. Never buffers
// stdout; the process's stderr is captured up to a bound, solely to seed
// ExecutionMetadata.Finalize's fallback error text.
func (o *Orchestrator) RunTask(ctx context.Context, task Task, sink stream.Sink) (*TaskResult, error) {
	adapter, err := o.registry.Get(task.Backend)
	if err != nil {
		return nil, err
	}

	args := make([]string, len(adapter.Args))
	for i, a := range adapter.Args {
		args[i] = substitutePlaceholders(a, task)
	}

	cmd := exec.CommandContext(ctx, adapter.Executable, args...)
	cmd.Env = append(cmd.Environ(), adapter.Env...)

	if adapter.PromptViaStdin {
		cmd.Stdin = strings.NewReader(task.Prompt)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("backend %s: stdout pipe: %w", task.Backend, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("backend %s: stderr pipe: %w", task.Backend, err)
	}

	tracker := metadata.New()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("backend %s: start: %w", task.Backend, err)
	}

	start := time.Now()

	var stderrBuf bytes.Buffer
	var stderrWg sync.WaitGroup
	stderrWg.Add(1)
	go func() {
		defer stderrWg.Done()
		io.Copy(&stderrBuf, io.LimitReader(stderr, maxCapturedStderr))
		io.Copy(io.Discard, stderr)
	}()

	consumeErr := o.handler.Consume(ctx, stdout, tracker, sink)

	stderrWg.Wait()
	waitErr := cmd.Wait()

	tracker.DurationSeconds = time.Since(start).Seconds()

	returncode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			returncode = exitErr.ExitCode()
		} else {
			returncode = -1
		}
	}
	tracker.Finalize(returncode, stderrBuf.String())

	if consumeErr != nil {
		tracker.Success = false
		switch {
		case ctx.Err() != nil:
			tracker.Error = "cancelled"
		case tracker.Error == "":
			tracker.Error = consumeErr.Error()
		}
	}

	logger.GetLogger().Info().
		Str("backend", task.Backend).
		Bool("success", tracker.Success).
		Int("line_count", tracker.LineCount).
		Msg("backend task finished")

	return &TaskResult{
		Backend:  task.Backend,
		Success:  tracker.Success,
		Error:    tracker.Error,
		Metadata: tracker,
	}, nil
}

func substitutePlaceholders(arg string, task Task) string {
	arg = strings.ReplaceAll(arg, "{prompt}", task.Prompt)
	arg = strings.ReplaceAll(arg, "{model}", task.Model)
	arg = strings.ReplaceAll(arg, "{model_provider}", task.ModelProvider)
	return arg
}

// RunFallback runs primary, then each fallback in order, strictly
// sequentially, stopping at the first success. If none succeed, returns
// the last failure with Degraded left false. If a later candidate
// succeeds after the primary failed, the result's Degraded flag is set.
func (o *Orchestrator) RunFallback(ctx context.Context, primary Task, fallbacks []Task, sink stream.Sink) (*TaskResult, error) {
	candidates := append([]Task{primary}, fallbacks...)

	var last *TaskResult
	for i, task := range candidates {
		result, err := o.RunTask(ctx, task, sink)
		if err != nil {
			return nil, fmt.Errorf("fallback candidate %s: %w", task.Backend, err)
		}
		if result.Success {
			result.Degraded = i > 0
			return result, nil
		}
		last = result
	}
	return last, nil
}

// ParallelResult is the outcome of RunParallel: one TaskResult per
// backend, keyed by backend id, alongside whether any task succeeded.
type ParallelResult struct {
	Results      map[string]*TaskResult
	AnySucceeded bool
}

// RunParallel runs tasks concurrently, at most maxWorkers at a time.
// sinkFor, if non-nil, is called once per task to obtain that task's sink
// (e.g. a per-backend output file); a nil return means no sink for that
// task. The result map preserves one entry per input task regardless of
// completion order.
func (o *Orchestrator) RunParallel(ctx context.Context, tasks []Task, maxWorkers int, sinkFor func(Task) stream.Sink) (*ParallelResult, error) {
	if maxWorkers <= 0 {
		maxWorkers = len(tasks)
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	results := make(map[string]*TaskResult, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxWorkers)

	for _, task := range tasks {
		task := task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			var sink stream.Sink
			if sinkFor != nil {
				sink = sinkFor(task)
			}

			result, err := o.RunTask(ctx, task, sink)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result = &TaskResult{
					Backend: task.Backend,
					Success: false,
					Error:   err.Error(),
					Metadata: &metadata.ExecutionMetadata{
						ReturnCode: -1,
					},
				}
			}
			results[task.Backend] = result
		}()
	}
	wg.Wait()

	anySucceeded := false
	for _, r := range results {
		if r.Success {
			anySucceeded = true
			break
		}
	}

	return &ParallelResult{Results: results, AnySucceeded: anySucceeded}, nil
}

// pipelineStageDelimiter separates a pipeline stage's own prompt text from
// the previous stage's captured output when passOutput composes the two.
const pipelineStageDelimiter = "\n\n--- previous stage output ---\n\n"

// PipelineStage is one stage's result within a PipelineResult. Prompt is
// the fully-resolved prompt actually dispatched to Backend, including any
// previous-stage output appended by passOutput.
type PipelineStage struct {
	Backend string      `json:"backend"`
	Prompt  string      `json:"prompt"`
	Result  *TaskResult `json:"result"`
}

// PipelineResult is the outcome of RunPipeline.
type PipelineResult struct {
	Stages               []PipelineStage `json:"stages"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	Success              bool            `json:"success"`
}

// capturingSink is the sole permitted capture boundary in this module: it
// mirrors every line to an inner sink (if any) while also retaining it, so
// RunPipeline can feed one stage's output into the next stage's prompt.
type capturingSink struct {
	inner stream.Sink
	buf   strings.Builder
	mu    sync.Mutex
}

func (c *capturingSink) Handle(line string) error {
	c.mu.Lock()
	c.buf.WriteString(line)
	c.buf.WriteByte('\n')
	c.mu.Unlock()
	if c.inner != nil {
		return c.inner.Handle(line)
	}
	return nil
}

func (c *capturingSink) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// RunPipeline runs stages sequentially. When passOutput is true, each
// stage's captured stdout is appended to the next stage's prompt. Stops at
// the first failing stage.
func (o *Orchestrator) RunPipeline(ctx context.Context, stages []Task, passOutput bool, sink stream.Sink) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{Success: true}

	var previousOutput string
	for _, task := range stages {
		if passOutput && previousOutput != "" {
			task.Prompt = task.Prompt + pipelineStageDelimiter + previousOutput
		}

		capture := &capturingSink{inner: sink}
		taskResult, err := o.RunTask(ctx, task, capture)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %s: %w", task.Backend, err)
		}

		result.Stages = append(result.Stages, PipelineStage{Backend: task.Backend, Prompt: task.Prompt, Result: taskResult})

		if !taskResult.Success {
			result.Success = false
			break
		}
		previousOutput = capture.String()
	}

	result.TotalDurationSeconds = time.Since(start).Seconds()
	return result, nil
}

// NewRunID generates a run identifier for backends that never emit one of
// their own.
func NewRunID() string {
	return uuid.NewString()
}
