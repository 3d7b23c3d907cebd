package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/concierge/pkg/domain"
)

const namespace = "concierge"

// Metrics holds the assistant's collectors.
type Metrics struct {
	Messages         *prometheus.CounterVec
	Bookings         *prometheus.CounterVec
	Resets           *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by route.",
		}, []string{"route"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_outcomes_total",
			Help:      "Booking attempts and decisions by outcome.",
		}, []string{"outcome"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_resets_total",
			Help:      "Sessions reset to the greeting stage by trigger.",
		}, []string{"trigger"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Outbound messages the gateway failed to deliver.",
		}),
	}
	reg.MustRegister(m.Messages, m.Bookings, m.Resets, m.DeliveryFailures)
	return m
}

// Hooks returns lifecycle callbacks that record into m.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnMessage: func(_ context.Context, route string) {
			m.Messages.WithLabelValues(route).Inc()
		},
		OnBooking: func(_ context.Context, outcome string) {
			m.Bookings.WithLabelValues(outcome).Inc()
		},
		OnReset: func(_ context.Context, _, trigger string) {
			m.Resets.WithLabelValues(trigger).Inc()
		},
		OnDeliveryFailure: func(_ context.Context, _ string, _ error) {
			m.DeliveryFailures.Inc()
		},
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
