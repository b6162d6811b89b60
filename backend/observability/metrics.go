package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveStreams tracks the number of currently running simulation streams.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediguard_active_streams",
		Help: "Current number of running simulation streams",
	})

	// EventsGenerated counts simulated test events by status.
	EventsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediguard_events_generated_total",
		Help: "Total simulated test events produced",
	}, []string{"status"}) // OK, ERROR

	// TickDuration tracks the wall time of one simulation tick including
	// the simulated hardware latency.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediguard_tick_duration_seconds",
		Help:    "Duration of one simulation tick (generate + score + publish + evaluate)",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	// AlertsTriggered counts alerts produced by the evaluator, by level.
	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediguard_alerts_triggered_total",
		Help: "Total alerts produced by the rule evaluator",
	}, []string{"level"}) // WARNING, CRITICAL

	// AlertPersistFailures counts alert store appends that failed. These are
	// logged and swallowed, never fatal to the stream.
	AlertPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediguard_alert_persist_failures_total",
		Help: "Alert store append failures (best-effort, non-fatal)",
	})

	// ConnectedObservers tracks the number of live websocket subscribers.
	ConnectedObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediguard_connected_observers",
		Help: "Current number of connected websocket observers",
	})

	// ObserversDropped counts subscribers dropped because their send buffer
	// stayed full or a write failed.
	ObserversDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediguard_observers_dropped_total",
		Help: "Websocket observers dropped by the broadcaster",
	}, []string{"reason"}) // backpressure, write_error, capacity

	// BroadcastMessages counts frames fanned out, by event kind.
	BroadcastMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediguard_broadcast_messages_total",
		Help: "Messages fanned out to observers",
	}, []string{"event"}) // test_result, alert, stream_ended

	// APIRateLimited tracks API requests rejected by rate limiters.
	APIRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediguard_api_rate_limited_total",
		Help: "API requests rejected by rate limiter (storm protection)",
	}, []string{"endpoint"}) // predict, streams
)
