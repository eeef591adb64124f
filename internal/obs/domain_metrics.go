package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout session creation outcomes.
	CheckoutTotal *prometheus.CounterVec
	// WebhookTotal counts inbound payment webhook processing outcomes.
	WebhookTotal *prometheus.CounterVec
	// SubscriptionTotal counts subscription lifecycle outcomes.
	SubscriptionTotal *prometheus.CounterVec
	// BackendForwardTotal tracks best-effort backend notification outcomes.
	BackendForwardTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout session creation outcomes.",
		}, []string{"provider", "result"})
		WebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		SubscriptionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_total",
			Help:      "Count of subscription lifecycle outcomes.",
		}, []string{"provider", "action", "result"})
		BackendForwardTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_forward_total",
			Help:      "Count of backend notification forwarding outcomes.",
		}, []string{"result"})

		CheckoutTotal = registerCounterVec(reg, CheckoutTotal)
		WebhookTotal = registerCounterVec(reg, WebhookTotal)
		SubscriptionTotal = registerCounterVec(reg, SubscriptionTotal)
		BackendForwardTotal = registerCounterVec(reg, BackendForwardTotal)
	})
}
