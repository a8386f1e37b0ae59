// Package eventlog records and replays the event stream produced by a
// backend invocation as JSON Lines, one event per line.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/relay/pkg/stream"
)

// Record is a single recorded event: a timestamp, the run it belongs to,
// which backend and stage produced it, and its type, plus whatever
// payload the backend emitted.
type Record struct {
	Timestamp time.Time      `json:"ts"`
	RunID     string         `json:"run_id"`
	Backend   string         `json:"backend"`
	Stage     string         `json:"stage"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Raw       string         `json:"raw,omitempty"`
}

// Recorder appends records to a JSONL file as they occur.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
}

// NewRecorder opens (creating if needed) path for appending.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Recorder{file: f}, nil
}

// Append writes one record as a JSON line.
func (r *Recorder) Append(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.file.Write(data); err != nil {
		return fmt.Errorf("write event record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	return r.file.Close()
}

// Sink adapts a Recorder into a stream.Sink-compatible callback bound to a
// run/backend/stage, recording each raw line as an unparsed event.
func (r *Recorder) Sink(runID, backend, stage string) func(line string) error {
	return func(line string) error {
		return r.Append(Record{
			Timestamp: time.Now(),
			RunID:     runID,
			Backend:   backend,
			Stage:     stage,
			Type:      "raw",
			Raw:       line,
		})
	}
}

// ReplayFormat selects how Replay renders each record.
type ReplayFormat int

const (
	// ReplayText renders each record through the same human rendering
	// stream.RenderEvent uses for live output.
	ReplayText ReplayFormat = iota
	// ReplayJSONL re-emits each record verbatim as JSON, for piping into
	// another tool.
	ReplayJSONL
)

// Replay reads a previously recorded JSONL file and calls emit once per
// record, in the order they were recorded.
func Replay(path string, format ReplayFormat, emit func(Record, string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open event log for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("parse event record: %w", err)
		}

		rendered := renderRecord(rec, format)
		if err := emit(rec, rendered); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func renderRecord(rec Record, format ReplayFormat) string {
	if format == ReplayJSONL {
		data, err := json.Marshal(rec)
		if err != nil {
			return rec.Raw
		}
		return string(data)
	}
	if rec.Raw != "" {
		return stream.RenderEvent(stream.ParseEvent(rec.Raw), stream.FormatRaw)
	}
	return stream.RenderEvent(stream.Event{Type: rec.Type, RunID: rec.RunID, Payload: rec.Payload}, stream.FormatRaw)
}
