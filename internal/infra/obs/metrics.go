package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts transitions and rail round trips.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	RailLatency   *prometheus.HistogramVec
	VoidFailures  prometheus.Counter
	AcceptsPaused prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "transitions_total",
			Help:      "State transitions by command and outcome.",
		}, []string{"command", "outcome"}),
		RailLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stayflow",
			Name:      "rail_request_seconds",
			Help:      "Payment rail round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rail", "op"}),
		VoidFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "void_failures_total",
			Help:      "Compensating voids that needed manual reconciliation.",
		}),
		AcceptsPaused: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "accepts_paused_total",
			Help:      "Accepts paused pending provider payout setup.",
		}),
	}
}

// ObserveRail records one rail round trip.
func (m *Metrics) ObserveRail(rail, op string, start time.Time) {
	if m == nil {
		return
	}
	m.RailLatency.WithLabelValues(rail, op).Observe(time.Since(start).Seconds())
}

// CountTransition records a command outcome.
func (m *Metrics) CountTransition(command, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(command, outcome).Inc()
}
