package emit

import "context"

// Emitter receives observability events from the engine's event bus.
//
// Implementations should be:
//   - Non-blocking: avoid slowing down workflow execution.
//   - Thread-safe: may be called concurrently for different instances.
//   - Resilient: handle failures gracefully, never panic.
type Emitter interface {
	// Emit sends a single event to the backend. Must not panic or block.
	Emit(event Event)

	// EmitBatch sends multiple events in one call, ordered by creation
	// time. Returns an error only on catastrophic failures; individual
	// event failures should be logged, not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events are sent, or ctx is done.
	Flush(ctx context.Context) error
}
