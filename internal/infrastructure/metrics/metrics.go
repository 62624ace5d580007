package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notification_service"

// Label values shared by the collectors below.
const (
	OutcomeAcked        = "acked"
	OutcomeDropped      = "dropped"
	OutcomeDeadLettered = "dead_lettered"

	ResultDelivered = "delivered"
	ResultOffline   = "offline"
)

var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Total number of broker messages handled, by routing key and terminal outcome",
		},
		[]string{"routing_key", "outcome"},
	)

	EventHandlingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handling_duration_seconds",
			Help:      "Duration of event handling from delivery to ack or dead-letter",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"routing_key"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications dispatched, by type and result",
		},
		[]string{"type", "result"},
	)

	PushFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Total number of pushes that could not be queued to a live connection",
		},
	)

	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Number of authenticated realtime connections",
		},
	)

	HandshakeRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_rejections_total",
			Help:      "Total number of refused realtime connection attempts, by reason",
		},
		[]string{"reason"},
	)

	BrokerReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_reconnects_total",
			Help:      "Total number of broker connection attempts after the first",
		},
	)

	BrokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 when a live broker channel is held, 0 otherwise",
		},
	)

	DeadLettersRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_recorded_total",
			Help:      "Total number of dead-lettered messages written to the audit log",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EventsConsumedTotal,
			EventHandlingDuration,
			NotificationsTotal,
			PushFailuresTotal,
			LiveConnections,
			HandshakeRejectionsTotal,
			BrokerReconnectsTotal,
			BrokerConnected,
			DeadLettersRecordedTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}
