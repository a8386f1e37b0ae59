package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ternarybob/relay/pkg/stream"
)

// cliSink renders each streamed line through stream.RenderEvent and writes
// it to w, unless quiet is set.
type cliSink struct {
	w      io.Writer
	format stream.Format
	quiet  bool
}

func newCLISink(w io.Writer, formatFlag string, quiet bool) *cliSink {
	format := stream.FormatRaw
	if formatFlag == "jsonl" {
		format = stream.FormatStructured
	}
	return &cliSink{w: w, format: format, quiet: quiet}
}

func (s *cliSink) Handle(line string) error {
	if s.quiet {
		return nil
	}
	evt := stream.ParseEvent(line)
	rendered := stream.RenderEvent(evt, s.format)
	_, err := fmt.Fprintln(s.w, rendered)
	return err
}

// openOutput opens path for writing, or returns os.Stdout when path is
// empty. The returned closer is a no-op for stdout.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// teeSink forwards every line to both a and b, in order, continuing to b
// even if a fails.
type teeSink struct {
	a, b stream.Sink
}

func (t *teeSink) Handle(line string) error {
	errA := t.a.Handle(line)
	errB := t.b.Handle(line)
	if errA != nil {
		return errA
	}
	return errB
}
