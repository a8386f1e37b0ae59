package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/relay/pkg/stream"
)

// shAdapter registers a backend whose "executable" is /bin/sh so tests
// don't depend on any real backend binary being installed.
func shAdapter(id, script string) Adapter {
	return Adapter{
		ID:         id,
		Executable: "/bin/sh",
		Args:       []string{"-c", script},
	}
}

type collectSink struct {
	mu    sync.Mutex
	lines []string
}

func (c *collectSink) Handle(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *collectSink) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func TestRunTask_StreamsOutputAndSucceeds(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo line1; echo line2`))
	orch := NewOrchestrator(reg)

	sink := &collectSink{}
	result, err := orch.RunTask(context.Background(), Task{Backend: "A", Prompt: "hi"}, sink)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Output, "TaskResult.Output must stay empty; streaming only")
	assert.Equal(t, []string{"line1", "line2"}, sink.Lines())
	assert.Equal(t, 2, result.Metadata.LineCount)
}

func TestRunTask_NonZeroExitIsFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo oops >&2; exit 3`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunTask(context.Background(), Task{Backend: "A"}, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "oops", result.Error)
}

func TestRunTask_PromptSubstitutedIntoArgs(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Adapter{
		ID:         "A",
		Executable: "/bin/sh",
		Args:       []string{"-c", `echo "{prompt}"`},
	})
	orch := NewOrchestrator(reg)

	sink := &collectSink{}
	_, err := orch.RunTask(context.Background(), Task{Backend: "A", Prompt: "hello there"}, sink)

	require.NoError(t, err)
	assert.Equal(t, []string{"hello there"}, sink.Lines())
}

func TestRunTask_PromptViaStdin(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Adapter{
		ID:             "A",
		Executable:     "/bin/sh",
		Args:           []string{"-c", "cat"},
		PromptViaStdin: true,
	})
	orch := NewOrchestrator(reg)

	sink := &collectSink{}
	_, err := orch.RunTask(context.Background(), Task{Backend: "A", Prompt: "from stdin"}, sink)

	require.NoError(t, err)
	assert.Equal(t, []string{"from stdin"}, sink.Lines())
}

func TestRunFallback_FirstSuccessWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `exit 1`))
	reg.Register(shAdapter("B", `echo ok`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunFallback(context.Background(),
		Task{Backend: "A"}, []Task{{Backend: "B"}}, nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "B", result.Backend)
	assert.True(t, result.Degraded)
}

func TestRunFallback_PrimarySuccessNotDegraded(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo ok`))
	reg.Register(shAdapter("B", `echo ok`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunFallback(context.Background(),
		Task{Backend: "A"}, []Task{{Backend: "B"}}, nil)

	require.NoError(t, err)
	assert.False(t, result.Degraded)
}

func TestRunFallback_AllFailReturnsLastFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo first fail >&2; exit 1`))
	reg.Register(shAdapter("B", `echo second fail >&2; exit 1`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunFallback(context.Background(),
		Task{Backend: "A"}, []Task{{Backend: "B"}}, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "B", result.Backend)
	assert.Equal(t, "second fail", result.Error)
}

func TestRunParallel_PreservesOneResultPerBackend(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo a`))
	reg.Register(shAdapter("B", `exit 1`))
	reg.Register(shAdapter("C", `echo c`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunParallel(context.Background(),
		[]Task{{Backend: "A"}, {Backend: "B"}, {Backend: "C"}}, 2, nil)

	require.NoError(t, err)
	assert.Len(t, result.Results, 3)
	assert.True(t, result.AnySucceeded)
	assert.True(t, result.Results["A"].Success)
	assert.False(t, result.Results["B"].Success)
	assert.True(t, result.Results["C"].Success)
}

func TestRunParallel_AnySucceededFalseWhenAllFail(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `exit 1`))
	reg.Register(shAdapter("B", `exit 1`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunParallel(context.Background(),
		[]Task{{Backend: "A"}, {Backend: "B"}}, 0, nil)

	require.NoError(t, err)
	assert.False(t, result.AnySucceeded)
}

func TestRunPipeline_StopsAtFirstFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo stage-a`))
	reg.Register(shAdapter("B", `exit 1`))
	reg.Register(shAdapter("C", `echo stage-c`))
	orch := NewOrchestrator(reg)

	result, err := orch.RunPipeline(context.Background(),
		[]Task{{Backend: "A"}, {Backend: "B"}, {Backend: "C"}}, false, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Stages, 2)
}

func TestRunPipeline_PassesOutputToNextStage(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo upstream-output`))
	reg.Register(Adapter{
		ID:             "B",
		Executable:     "/bin/sh",
		Args:           []string{"-c", "cat"},
		PromptViaStdin: true,
	})
	orch := NewOrchestrator(reg)

	sink := &collectSink{}
	result, err := orch.RunPipeline(context.Background(),
		[]Task{{Backend: "A"}, {Backend: "B", Prompt: "continue:"}}, true, sink)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, sink.Lines(), "upstream-output")
}

func TestRunPipeline_StageRecordsResolvedPrompt(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `echo hello`))
	reg.Register(Adapter{
		ID:             "B",
		Executable:     "/bin/sh",
		Args:           []string{"-c", "cat"},
		PromptViaStdin: true,
	})
	orch := NewOrchestrator(reg)

	result, err := orch.RunPipeline(context.Background(),
		[]Task{{Backend: "A"}, {Backend: "B", Prompt: "continue:"}}, true, nil)

	require.NoError(t, err)
	require.Len(t, result.Stages, 2)
	assert.Empty(t, result.Stages[0].Prompt)
	assert.Equal(t, "continue:"+pipelineStageDelimiter+"hello\n", result.Stages[1].Prompt)
}

func TestRunTask_ContextCancellationMarksFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(shAdapter("A", `sleep 5`))
	orch := NewOrchestrator(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := orch.RunTask(ctx, Task{Backend: "A"}, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
}
