package eventlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	rec, err := NewRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Append(Record{
		Timestamp: time.Now(),
		RunID:     "run-1",
		Backend:   "A",
		Stage:     "run-task",
		Type:      "run.start",
		Payload:   map[string]any{"run_id": "run-1"},
	}))
	require.NoError(t, rec.Append(Record{
		Timestamp: time.Now(),
		RunID:     "run-1",
		Backend:   "A",
		Stage:     "run-task",
		Type:      "raw",
		Raw:       "hello world",
	}))
	require.NoError(t, rec.Close())

	var replayed []Record
	var rendered []string
	err = Replay(path, ReplayText, func(r Record, out string) error {
		replayed = append(replayed, r)
		rendered = append(rendered, out)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, "run.start", replayed[0].Type)
	assert.Equal(t, "hello world", rendered[1])
}

func TestReplay_JSONLFormatReemitsVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Append(Record{RunID: "r", Backend: "B", Type: "error", Payload: map[string]any{"message": "boom"}}))
	require.NoError(t, rec.Close())

	var rendered []string
	err = Replay(path, ReplayJSONL, func(_ Record, out string) error {
		rendered = append(rendered, out)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, rendered, 1)
	assert.Contains(t, rendered[0], `"type":"error"`)
}

func TestRecorderSinkBindsRunBackendStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	sink := rec.Sink("run-9", "C", "pipeline:0")
	require.NoError(t, sink("line one"))
	require.NoError(t, rec.Close())

	var records []Record
	err = Replay(path, ReplayText, func(r Record, _ string) error {
		records = append(records, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-9", records[0].RunID)
	assert.Equal(t, "C", records[0].Backend)
	assert.Equal(t, "pipeline:0", records[0].Stage)
}
