package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConversationMetricsObserve(t *testing.T) {
	m := NewConversationMetrics(nil)
	m.ObserveTurn("ok", "collecting", 0.25)
	m.ObserveAvailabilityCheck("available")
	m.ObserveBooking("success")
	m.ObserveParseFallback()
}

func TestConversationMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveTurn("generation_error", "checked", 1.5)
}

func TestConversationMetricsNilSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveTurn("ok", "collecting", 0.1)
	m.ObserveAvailabilityCheck("error")
	m.ObserveBooking("failure")
	m.ObserveParseFallback()
}
