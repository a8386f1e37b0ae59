// Package stream consumes a backend's stdout line-by-line and forwards it
// to a caller-supplied sink and a metadata tracker, without ever buffering
// the output itself. A multi-gigabyte stream and a one-line stream cost
// the same amount of memory to consume.
package stream

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/ternarybob/relay/internal/logger"
	"github.com/ternarybob/relay/pkg/metadata"
)

const maxScanTokenSize = 1024 * 1024

// Sink receives each output line as it streams past. A sink that returns
// an error or panics does not stop the stream: the error is logged and
// counted on the tracker, and consumption continues with the next line.
type Sink interface {
	Handle(line string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string) error

// Handle implements Sink.
func (f SinkFunc) Handle(line string) error { return f(line) }

// Handler consumes a reader line-by-line.
type Handler struct{}

// NewHandler returns a Handler. It holds no state; a value receiver would
// do just as well, but the type exists so callers have something to extend
// (e.g. with scan buffer tuning) without breaking the API.
func NewHandler() *Handler {
	return &Handler{}
}

// Consume reads r line-by-line until EOF, ctx cancellation, or a read
// error. Every line is passed to sink.Handle and then to tracker.Extract
// (with the sink call's elapsed milliseconds) before the next line is
// read. Returns ctx.Err() on
// cancellation, the scanner's error on a read failure, or nil on a clean
// EOF.
func (h *Handler) Consume(ctx context.Context, r io.Reader, tracker *metadata.ExecutionMetadata, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		var deltaMS float64
		if sink != nil {
			start := time.Now()
			if err := safeHandle(sink, line); err != nil {
				tracker.CallbackErrors++
				logger.GetLogger().Warn().Err(err).Msg("stream sink failed, continuing")
			}
			deltaMS = float64(time.Since(start).Microseconds()) / 1000.0
		}

		tracker.Extract(line, deltaMS)
	}

	return scanner.Err()
}

func safeHandle(sink Sink, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()
	return sink.Handle(line)
}

func panicToErr(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return &panicError{value: r}
}

type panicError struct{ value any }

func (p *panicError) Error() string {
	return "stream sink panic"
}
