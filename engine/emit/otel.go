package emit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating an OpenTelemetry span per
// event. Each event becomes a zero-duration span named after its Kind, with
// workflow/instance/action/token recorded as attributes — adapted from the
// teacher's node-execution span-per-event approach (graph/emit/otel.go),
// generalized here to our five event kinds (the three wire kinds plus the
// scheduler's TurnStarted/TurnExpired) instead of per-node events.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter builds an OTelEmitter using the given tracer. Obtain one
// with otel.Tracer("nightloom").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow_id", event.WorkflowID),
		attribute.String("instance_id", event.InstanceID),
	)
	if event.ActionID != "" {
		span.SetAttributes(attribute.String("action_id", event.ActionID))
	}
	if event.Token != "" {
		span.SetAttributes(attribute.String("token", event.Token))
	}
	if event.PlayerID != "" {
		span.SetAttributes(attribute.String("player_id", event.PlayerID), attribute.String("role_name", event.RoleName))
	}
	span.SetStatus(codes.Ok, "")
}

func (o *OTelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		o.Emit(e)
	}
	return nil
}

func (o *OTelEmitter) Flush(context.Context) error { return nil }
