package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Verification outcome labels.
const (
	OutcomeCompleted        = "completed"
	OutcomeFailed           = "failed"
	OutcomePending          = "pending"
	OutcomeCached           = "cached"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeAmountMismatch   = "amount_mismatch"
	OutcomeNotFound         = "not_found"
	OutcomeGatewayError     = "gateway_error"
	OutcomeLostRace         = "lost_race"
)

// PaymentMetrics covers the initialize and verify paths.
type PaymentMetrics struct {
	verifications   *prometheus.CounterVec
	initializations *prometheus.CounterVec
	cache           *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

// NewPaymentMetrics registers payment metrics on reg. A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_verifications_total",
		Help:      "Verification requests by outcome.",
	}, []string{"outcome"})
	initializations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_initializations_total",
		Help:      "Checkout initializations by result.",
	}, []string{"result"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_cache_lookups_total",
		Help:      "Verification cache lookups by result (hit, miss, error).",
	}, []string{"result"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Latency of payment gateway calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"operation", "result"})
	reg.MustRegister(verifications, initializations, cache, gatewayLatency)
	return &PaymentMetrics{
		verifications:   verifications,
		initializations: initializations,
		cache:           cache,
		gatewayLatency:  gatewayLatency,
	}
}

func (p *PaymentMetrics) IncVerification(outcome string) {
	if p == nil || p.verifications == nil {
		return
	}
	p.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) IncInitialization(ok bool) {
	if p == nil || p.initializations == nil {
		return
	}
	p.initializations.WithLabelValues(resultLabel(ok)).Inc()
}

// IncCache records a cache lookup; result is one of hit, miss, error.
func (p *PaymentMetrics) IncCache(result string) {
	if p == nil || p.cache == nil {
		return
	}
	p.cache.WithLabelValues(normalizeLabel(result)).Inc()
}

func (p *PaymentMetrics) ObserveGateway(operation string, ok bool, d time.Duration) {
	if p == nil || p.gatewayLatency == nil {
		return
	}
	p.gatewayLatency.WithLabelValues(normalizeLabel(operation), resultLabel(ok)).Observe(d.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
