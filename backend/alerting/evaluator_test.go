package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard/mediguard/backend/simulator"
	"github.com/mediguard/mediguard/backend/store"
)

func intPtr(n int) *int { return &n }

func okEvent(days *int, score float64) simulator.TestEvent {
	return simulator.TestEvent{
		Status:        simulator.StatusOK,
		Manufacturer:  "PharmaCorp",
		Batch:         "B001",
		DaysToExpiry:  days,
		FakeScore:     score,
		PredictedFake: score >= 0.8,
		Timestamp:     time.Now().UTC(),
	}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []string
	last   interface{}
}

func (c *capturePublisher) Publish(event string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.last = payload
}

type failingStore struct{}

func (failingStore) Append(context.Context, *store.Alert) error { return errors.New("backend down") }
func (failingStore) ListRecent(context.Context, int) ([]*store.Alert, error) {
	return nil, errors.New("backend down")
}

type stubPhones map[string]string

func (p stubPhones) PhoneFor(m string) string { return p[m] }

func TestEvaluateRulePrecedence(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)

	cases := []struct {
		name   string
		ev     simulator.TestEvent
		level  string
		reason string
	}{
		{"expiring in 30 days", okEvent(intPtr(30), 0.1), store.LevelCritical, "Expiry within 3 months (days_to_expiry=30)"},
		{"already expired", okEvent(intPtr(-5), 0.1), store.LevelCritical, "Expiry within 3 months (days_to_expiry=-5)"},
		{"expiring in 100 days", okEvent(intPtr(100), 0.1), store.LevelWarning, "Expiry within 4 months (days_to_expiry=100)"},
		{"far expiry but anomalous", okEvent(intPtr(200), 0.9), store.LevelCritical, "ML anomaly (score=0.900)"},
		{"unknown expiry anomalous", okEvent(nil, 0.85), store.LevelCritical, "ML anomaly (score=0.850)"},
		{"unknown expiry suspicious", okEvent(nil, 0.6), store.LevelWarning, "ML suspicious (score=0.600)"},
		{"expiry rule beats score rule", okEvent(intPtr(80), 0.95), store.LevelCritical, "Expiry within 3 months (days_to_expiry=80)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alert := e.Evaluate(tc.ev)
			require.NotNil(t, alert)
			assert.Equal(t, tc.level, alert.Level)
			assert.Equal(t, tc.level+": "+tc.reason+" | supplier=PharmaCorp", alert.Message)
			assert.Equal(t, "PharmaCorp", alert.Manufacturer)
			assert.NotEmpty(t, alert.ID)
		})
	}
}

func TestEvaluateCleanEventProducesNoAlert(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	assert.Nil(t, e.Evaluate(okEvent(intPtr(365), 0.2)))
	assert.Nil(t, e.Evaluate(okEvent(nil, 0.49)))
}

func TestEvaluateSkipsErrorEvents(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	ev := simulator.TestEvent{Status: simulator.StatusError, ErrorMsg: "hardware timeout"}
	assert.Nil(t, e.Evaluate(ev))
}

func TestEvaluateDefaultsManufacturerToUnknown(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	ev := okEvent(intPtr(10), 0.1)
	ev.Manufacturer = ""

	alert := e.Evaluate(ev)
	require.NotNil(t, alert)
	assert.Equal(t, "Unknown", alert.Manufacturer)
	assert.Contains(t, alert.Message, "supplier=Unknown")
}

func TestEvaluateResolvesPhone(t *testing.T) {
	e := NewEvaluator(nil, stubPhones{"PharmaCorp": "+1-555-0101"}, nil)

	alert := e.Evaluate(okEvent(intPtr(10), 0.1))
	require.NotNil(t, alert)
	assert.Equal(t, "+1-555-0101", alert.ManufacturerPhone)
}

func TestHandleEventPersistsAndBroadcasts(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &capturePublisher{}
	e := NewEvaluator(mem, nil, pub)

	e.HandleEvent(context.Background(), okEvent(intPtr(30), 0.1))

	assert.Equal(t, 1, mem.Len())
	require.Equal(t, []string{"alert"}, pub.events)
	alert, ok := pub.last.(*store.Alert)
	require.True(t, ok)
	assert.Equal(t, store.LevelCritical, alert.Level)
}

func TestHandleEventBroadcastsDespiteStoreFailure(t *testing.T) {
	pub := &capturePublisher{}
	e := NewEvaluator(failingStore{}, nil, pub)

	e.HandleEvent(context.Background(), okEvent(intPtr(30), 0.1))

	assert.Equal(t, []string{"alert"}, pub.events)
}

func TestHandleEventQuietOnCleanEvent(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &capturePublisher{}
	e := NewEvaluator(mem, nil, pub)

	e.HandleEvent(context.Background(), okEvent(intPtr(365), 0.1))

	assert.Equal(t, 0, mem.Len())
	assert.Empty(t, pub.events)
}
