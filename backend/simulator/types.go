// Package simulator contains the streaming simulation engine: the event
// generator that models one hardware test per tick and the supervisor that
// owns the set of running streams.
package simulator

import (
	"context"
	"time"
)

// Tick status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Auxiliary pass/fail labels for the simulated hardware verdict.
const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// TestEvent is one simulated hardware test. It is created once per tick and
// immutable afterwards; the evaluator and the broadcaster share it read-only.
type TestEvent struct {
	StreamID string `json:"stream_id,omitempty"`
	Sequence int    `json:"seq"`
	Status   string `json:"status"`

	Manufacturer string     `json:"manufacturer,omitempty"`
	Batch        string     `json:"batch,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	DaysToExpiry *int       `json:"days_to_expiry,omitempty"`

	FakeScore      float64   `json:"fake_score"`
	PredictedFake  bool      `json:"predicted_fake"`
	TestResult     string    `json:"test_result,omitempty"`
	SensorReadings []float64 `json:"raw_sensor,omitempty"`

	// Duration is the simulated hardware latency in seconds.
	Duration  float64   `json:"duration"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans a message out to all live observers. Implementations must
// not block the caller on slow subscribers.
type Broadcaster interface {
	Publish(event string, payload interface{})
}

// Evaluator inspects a produced event and may raise an alert as a best-effort
// side effect. Called inline from the stream worker.
type Evaluator interface {
	HandleEvent(ctx context.Context, ev TestEvent)
}
