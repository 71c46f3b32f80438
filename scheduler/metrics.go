package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics collects night-scheduler Prometheus metrics, adapted from the
// teacher's PrometheusMetrics (graph/metrics.go): gauges/counters registered
// with promauto under a dedicated namespace instead of the teacher's
// per-node-execution set.
type metrics struct {
	// stagedGauge tracks how many (player, card) turns remain in the
	// current night's priority queue.
	stagedGauge prometheus.Gauge

	// turnsTotal counts turns run per role name, across all nights.
	turnsTotal *prometheus.CounterVec

	// turnTimeoutsTotal counts turns whose bounded wait expired via the
	// timer branch rather than ctx.Done(), per role name.
	turnTimeoutsTotal *prometheus.CounterVec
}

// newMetrics registers a fresh set of night-scheduler metrics against reg.
// All metrics use the "nightloom" namespace. Callers that build more than
// one Night in the same process must pass distinct registries (e.g.
// prometheus.NewRegistry() per Night) — registering the same metric name
// twice against one registry panics, matching the teacher's
// NewPrometheusMetrics(registry prometheus.Registerer) precedent
// (graph/metrics.go) and this module's own NewPrometheusEmitter.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		stagedGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nightloom",
			Name:      "night_staged_turns",
			Help:      "Number of (player, card) turns remaining in the current night's priority queue",
		}),
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightloom",
			Name:      "night_turns_total",
			Help:      "Cumulative count of night turns run, by role name",
		}, []string{"role"}),
		turnTimeoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightloom",
			Name:      "night_turn_timeouts_total",
			Help:      "Cumulative count of turns whose bounded wait expired via the timer rather than context cancellation, by role name",
		}, []string{"role"}),
	}
}
