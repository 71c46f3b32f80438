package emit

import (
	"context"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes one line per event to an io.Writer (default os.Stdout).
// Adapted from the teacher's stdout/log emitter pattern: simple, synchronous,
// suitable as a default development sink.
type LogEmitter struct {
	w io.Writer
}

// NewLogEmitter builds a LogEmitter writing to w. If w is nil, os.Stdout is
// used.
func NewLogEmitter(w io.Writer) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{w: w}
}

func (l *LogEmitter) Emit(event Event) {
	fmt.Fprintf(l.w, "[%s] %s workflow=%s instance=%s\n", event.At.Format("15:04:05.000"), event.Kind, event.WorkflowID, event.InstanceID)
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(_ context.Context) error { return nil }
