package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics records the engine's operational counters.
type CoreMetrics struct {
	mutationDuration *prometheus.HistogramVec
	mutations        *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// NewCoreMetrics registers the engine metrics on the provided registerer.
func NewCoreMetrics(reg prometheus.Registerer) *CoreMetrics {
	if reg == nil {
		return &CoreMetrics{}
	}
	mutationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stock_mutation_duration_seconds",
		Help:    "Duration of stock mutation transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_mutations_total",
		Help: "Stock quantity mutations by result.",
	}, []string{"result"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "request_decisions_total",
		Help: "Request decisions by decision and result.",
	}, []string{"decision", "result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_emitted_total",
		Help: "Notifications written, by type.",
	}, []string{"type"})
	reg.MustRegister(mutationDuration, mutations, decisions, notifications)
	return &CoreMetrics{
		mutationDuration: mutationDuration,
		mutations:        mutations,
		decisions:        decisions,
		notifications:    notifications,
	}
}

// ObserveMutation records one stock mutation attempt and its duration.
func (c *CoreMetrics) ObserveMutation(result string, duration time.Duration) {
	if c == nil || c.mutations == nil {
		return
	}
	label := normalizeLabel(result)
	c.mutations.WithLabelValues(label).Inc()
	c.mutationDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncDecision increments the decision counter.
func (c *CoreMetrics) IncDecision(decision, result string) {
	if c == nil || c.decisions == nil {
		return
	}
	c.decisions.WithLabelValues(normalizeLabel(decision), normalizeLabel(result)).Inc()
}

// IncNotification increments the emitted-notification counter for the type.
func (c *CoreMetrics) IncNotification(notificationType string) {
	if c == nil || c.notifications == nil {
		return
	}
	c.notifications.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
