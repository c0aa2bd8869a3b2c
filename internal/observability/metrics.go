package observability

import "github.com/prometheus/client_golang/prometheus"

// Client and venue metrics, registered on the default registry and served
// at /metrics by the health HTTP server.
var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ems_client_orders_submitted_total",
			Help: "Orders handed to the venue gateway",
		},
		[]string{"side"},
	)

	OrderEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ems_client_order_events_total",
			Help: "Order lifecycle events received, by event type",
		},
		[]string{"type"},
	)

	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ems_client_state_transitions_total",
			Help: "Session state transitions, by target state",
		},
		[]string{"state"},
	)

	RunOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ems_client_runs_total",
			Help: "Finished runs, by outcome (order_done|connection_failed|timed_out)",
		},
		[]string{"outcome"},
	)

	// Venue simulator side
	VenueOrdersExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ems_venue_orders_total",
			Help: "Order commands handled by the venue simulator, by result (new|duplicate)",
		},
		[]string{"result"},
	)

	VenueEventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ems_venue_events_published_total",
			Help: "Outbox events published to the events topic",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrderEvents,
		StateTransitions,
		RunOutcomes,
		VenueOrdersExecuted,
		VenueEventsPublished,
	)
}
