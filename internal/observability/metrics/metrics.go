package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the dialogue engine.
type ConversationMetrics struct {
	turnsTotal         *prometheus.CounterVec
	turnLatency        *prometheus.HistogramVec
	availabilityChecks *prometheus.CounterVec
	bookingsTotal      *prometheus.CounterVec
	parseFallbacks     prometheus.Counter
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed dialogue turns",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "receptionist",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one dialogue turn end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		availabilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "scheduling",
			Name:      "availability_checks_total",
			Help:      "Total calendar availability lookups",
		}, []string{"result"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts",
		}, []string{"status"}),
		parseFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "receptionist",
			Subsystem: "conversation",
			Name:      "parse_fallbacks_total",
			Help:      "Model replies that failed envelope parsing",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.availabilityChecks, m.bookingsTotal, m.parseFallbacks)
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome, phase string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.WithLabelValues(phase).Observe(seconds)
}

func (m *ConversationMetrics) ObserveAvailabilityCheck(result string) {
	if m == nil {
		return
	}
	m.availabilityChecks.WithLabelValues(result).Inc()
}

func (m *ConversationMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveParseFallback() {
	if m == nil {
		return
	}
	m.parseFallbacks.Inc()
}
