// Package alerting applies the alert-rule policy to simulated test events
// and raises alerts as best-effort side effects: persisted to the alert
// store and pushed to live observers, independently of each other.
package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mediguard/mediguard/backend/observability"
	"github.com/mediguard/mediguard/backend/scoring"
	"github.com/mediguard/mediguard/backend/simulator"
	"github.com/mediguard/mediguard/backend/store"
)

// Score thresholds for the ML-based rules. Expiry-proximity rules take
// precedence and ignore the score entirely.
const (
	WarnThreshold = 0.5
)

// Expiry-proximity cutoffs in days.
const (
	criticalExpiryDays = 90  // within 3 months
	warningExpiryDays  = 120 // within 4 months
)

// PhoneDirectory resolves a manufacturer to a contact phone number.
// Satisfied by catalog.Catalog; "" means unknown.
type PhoneDirectory interface {
	PhoneFor(manufacturer string) string
}

// Evaluator consumes generated events and produces zero or one alert each.
type Evaluator struct {
	store       store.AlertStore
	phones      PhoneDirectory
	broadcaster simulator.Broadcaster
}

// NewEvaluator wires the evaluator. phones and broadcaster may be nil.
func NewEvaluator(s store.AlertStore, phones PhoneDirectory, b simulator.Broadcaster) *Evaluator {
	return &Evaluator{store: s, phones: phones, broadcaster: b}
}

// Evaluate applies the rule policy to ev and returns the alert it produces,
// or nil. Pure: no persistence or broadcast happens here.
//
// Precedence, first match wins:
//  1. days_to_expiry <= 90            -> CRITICAL (expiry within 3 months)
//  2. days_to_expiry <= 120           -> WARNING  (expiry within 4 months)
//  3. predicted fake or score >= 0.8  -> CRITICAL (ML anomaly)
//  4. score >= 0.5                    -> WARNING  (ML suspicious)
func (e *Evaluator) Evaluate(ev simulator.TestEvent) *store.Alert {
	if ev.Status != simulator.StatusOK {
		return nil
	}

	var level, reason string
	switch {
	case ev.DaysToExpiry != nil && *ev.DaysToExpiry <= criticalExpiryDays:
		level = store.LevelCritical
		reason = fmt.Sprintf("Expiry within 3 months (days_to_expiry=%d)", *ev.DaysToExpiry)
	case ev.DaysToExpiry != nil && *ev.DaysToExpiry <= warningExpiryDays:
		level = store.LevelWarning
		reason = fmt.Sprintf("Expiry within 4 months (days_to_expiry=%d)", *ev.DaysToExpiry)
	case ev.PredictedFake || ev.FakeScore >= scoring.FakeThreshold:
		level = store.LevelCritical
		reason = fmt.Sprintf("ML anomaly (score=%.3f)", ev.FakeScore)
	case ev.FakeScore >= WarnThreshold:
		level = store.LevelWarning
		reason = fmt.Sprintf("ML suspicious (score=%.3f)", ev.FakeScore)
	default:
		return nil
	}

	manufacturer := ev.Manufacturer
	if manufacturer == "" {
		manufacturer = "Unknown"
	}

	phone := ""
	if e.phones != nil {
		phone = e.phones.PhoneFor(manufacturer)
	}

	return &store.Alert{
		ID:                uuid.NewString(),
		Timestamp:         time.Now().UTC(),
		Level:             level,
		Manufacturer:      manufacturer,
		ManufacturerPhone: phone,
		Message:           fmt.Sprintf("%s: %s | supplier=%s", level, reason, manufacturer),
		Event:             ev,
	}
}

// HandleEvent evaluates ev and, when a rule fires, persists and broadcasts
// the alert. A failure in either side effect is logged and never interrupts
// the other or the stream that produced the event.
func (e *Evaluator) HandleEvent(ctx context.Context, ev simulator.TestEvent) {
	alert := e.Evaluate(ev)
	if alert == nil {
		return
	}

	observability.AlertsTriggered.WithLabelValues(alert.Level).Inc()

	if e.store != nil {
		if err := e.store.Append(ctx, alert); err != nil {
			observability.AlertPersistFailures.Inc()
			log.Printf("alerting: failed to persist alert %s: %v", alert.ID, err)
		}
	}
	if e.broadcaster != nil {
		e.broadcaster.Publish("alert", alert)
	}
}
