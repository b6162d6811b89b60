package store

import "context"

// AlertStore is the durable append store for alerts. Append is the only
// mutating operation; implementations must tolerate concurrent appends from
// multiple stream evaluators.
type AlertStore interface {
	// Append durably records one alert.
	Append(ctx context.Context, alert *Alert) error

	// ListRecent returns up to limit alerts, most recent first.
	ListRecent(ctx context.Context, limit int) ([]*Alert, error)
}
