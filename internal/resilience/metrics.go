package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors are labelled by target: one series per upstream payment
// processor plus one for the backend forward endpoint.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payhub",
			Name:      "breaker_state",
			Help:      "Current breaker state per upstream target: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payhub",
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions per upstream target",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payhub",
			Name:      "breaker_open_total",
			Help:      "Number of times an upstream target tripped its breaker open",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
