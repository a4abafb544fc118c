package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsReserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketcore_tickets_reserved_total",
			Help: "Tickets reserved by purchase calls",
		},
		[]string{"event_id"},
	)

	ReserveRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketcore_reserve_rejections_total",
			Help: "Purchase calls rejected by inventory, by reason",
		},
		[]string{"reason"},
	)

	TicketsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketcore_tickets_expired_total",
			Help: "Reservations expired by the sweeper",
		},
	)

	PaymentsTimedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketcore_payments_timed_out_total",
			Help: "Pending payments force-failed after the payment timeout",
		},
	)

	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketcore_sweep_errors_total",
			Help: "Per-item errors encountered during expiry sweeps",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketcore_sweep_duration_seconds",
			Help:    "Duration of a single expiry sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketcore_payment_outcomes_total",
			Help: "Payment state changes by gateway and resulting status",
		},
		[]string{"gateway", "status"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketcore_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"gateway", "call"},
	)
)
