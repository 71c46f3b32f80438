package emit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusEmitter counts events by kind, namespaced "nightloom_events_total"
// with a "kind" label — adapted from the teacher's PrometheusMetrics
// pattern (graph/metrics.go) of promauto-registered counters/gauges, scoped
// down to the single metric our event bus warrants (the scheduler package
// owns the richer turn/queue metrics, see its unexported metrics type).
type PrometheusEmitter struct {
	eventsTotal *prometheus.CounterVec
}

// NewPrometheusEmitter registers its metric on reg and returns the emitter.
func NewPrometheusEmitter(reg prometheus.Registerer) *PrometheusEmitter {
	return &PrometheusEmitter{
		eventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightloom",
			Name:      "events_total",
			Help:      "Total workflow engine events emitted, by kind.",
		}, []string{"kind"}),
	}
}

func (p *PrometheusEmitter) Emit(event Event) {
	p.eventsTotal.WithLabelValues(string(event.Kind)).Inc()
}

func (p *PrometheusEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		p.Emit(e)
	}
	return nil
}

func (p *PrometheusEmitter) Flush(context.Context) error { return nil }
