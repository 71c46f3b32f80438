// Package emit provides the workflow engine's event bus: an async
// subscriber fan-out (§4.6) plus a pluggable Emitter sink abstraction for
// attaching observability backends (log, OpenTelemetry, Prometheus) without
// the engine needing to know about any of them.
package emit

import "time"

// Kind discriminates the wire event kinds (§6).
type Kind string

const (
	WorkflowStarted             Kind = "WorkflowStarted"
	WorkflowUpdated             Kind = "WorkflowUpdated"
	ExternalServerActionRequest Kind = "ExternalServerActionRequest"

	// TurnStarted and TurnExpired are emitted by the night scheduler
	// (spec.md §4.7), not the engine; they share this bus so a single
	// subscriber can observe both workflow and scheduling activity.
	TurnStarted Kind = "TurnStarted"
	TurnExpired Kind = "TurnExpired"
)

// Event is the single envelope carrying all wire event kinds, generalizing
// the teacher's emit.Event{RunID, Step, NodeID, Msg, Meta} shape to our
// event kinds via Kind plus a typed Resource payload instead of a free-form
// Meta map.
type Event struct {
	Kind Kind
	At   time.Time

	WorkflowID string
	InstanceID string

	// Resource is the read-only workflow projection at the time of the
	// event. Any concrete type may be stored here by the emitting package
	// (the engine package stores *engine.WorkflowResource); emit does not
	// depend on engine to avoid an import cycle.
	Resource any

	// Token correlates ExternalServerActionRequest with the eventual
	// RespondServerAction call.
	Token string

	// ActionID is set for ExternalServerActionRequest events.
	ActionID string

	// PlayerID and RoleName are set for TurnStarted/TurnExpired.
	PlayerID string
	RoleName string
}
