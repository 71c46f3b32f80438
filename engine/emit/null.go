package emit

import "context"

// NullEmitter discards every event. Useful as a default so callers never
// need a nil check, and in tests that don't care about observability.
type NullEmitter struct{}

func (NullEmitter) Emit(Event)                             {}
func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }
func (NullEmitter) Flush(context.Context) error              { return nil }
