package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard/mediguard/backend/catalog"
)

// fixedScorer returns the same score for every row.
type fixedScorer float64

func (f fixedScorer) Score(*time.Time, string) float64 { return float64(f) }

// quietConfig removes latency and random faults so tests are fast and
// deterministic.
func quietConfig() GeneratorConfig {
	return GeneratorConfig{
		SensorChannels: 3,
		Seed:           42,
	}
}

var genRef = time.Date(2025, 11, 25, 0, 0, 0, 0, time.UTC)

func testRow(days int) catalog.Row {
	expiry := genRef.AddDate(0, 0, days)
	return catalog.Row{Manufacturer: "PharmaCorp", Batch: "B001", Expiry: &expiry}
}

func TestNextProducesCompleteEvent(t *testing.T) {
	g := NewGenerator(quietConfig(), fixedScorer(0.3), genRef)

	ev := g.Next(testRow(365))
	assert.Equal(t, StatusOK, ev.Status)
	assert.Equal(t, "PharmaCorp", ev.Manufacturer)
	assert.Equal(t, "B001", ev.Batch)
	assert.Equal(t, 0.3, ev.FakeScore)
	assert.False(t, ev.PredictedFake)
	assert.Equal(t, ResultPass, ev.TestResult)
	require.NotNil(t, ev.DaysToExpiry)
	assert.Equal(t, 365, *ev.DaysToExpiry)
	assert.Len(t, ev.SensorReadings, 3)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestNextMissingExpiryLeavesDaysNil(t *testing.T) {
	g := NewGenerator(quietConfig(), fixedScorer(0.1), genRef)

	ev := g.Next(catalog.Row{Manufacturer: "HealthMeds"})
	assert.Nil(t, ev.DaysToExpiry)
	assert.Nil(t, ev.Expiry)
}

func TestNextHardwareFault(t *testing.T) {
	cfg := quietConfig()
	cfg.FailureRate = 1
	g := NewGenerator(cfg, fixedScorer(0.1), genRef)

	ev := g.Next(testRow(365))
	assert.Equal(t, StatusError, ev.Status)
	assert.Equal(t, "hardware timeout or sensor disconnect", ev.ErrorMsg)
	assert.Empty(t, ev.Manufacturer)
	assert.Nil(t, ev.SensorReadings)
}

func TestNextHighScoreFails(t *testing.T) {
	g := NewGenerator(quietConfig(), fixedScorer(0.92), genRef)

	ev := g.Next(testRow(365))
	assert.True(t, ev.PredictedFake)
	assert.Equal(t, ResultFail, ev.TestResult)
}

func TestNextFlippedResult(t *testing.T) {
	cfg := quietConfig()
	cfg.FlipRate = 1
	g := NewGenerator(cfg, fixedScorer(0.1), genRef)

	// Clean batch, but the flip inverts the label.
	ev := g.Next(testRow(365))
	assert.False(t, ev.PredictedFake)
	assert.Equal(t, ResultFail, ev.TestResult)
}

func TestSensorReadingsTrackQuality(t *testing.T) {
	g := NewGenerator(quietConfig(), fixedScorer(0.2), genRef)

	// Noise level is zero, so readings are exactly base * drift.
	ev := g.Next(testRow(365))
	require.Len(t, ev.SensorReadings, 3)
	assert.InDelta(t, 0.8*0.98, ev.SensorReadings[0], 1e-9)
	assert.InDelta(t, 0.8, ev.SensorReadings[1], 1e-9)
	assert.InDelta(t, 0.8*1.02, ev.SensorReadings[2], 1e-9)
}

func TestSensorReadingsFloorForWorstScore(t *testing.T) {
	g := NewGenerator(quietConfig(), fixedScorer(1.0), genRef)

	ev := g.Next(testRow(365))
	for _, r := range ev.SensorReadings {
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 5.0)
		assert.Greater(t, r, 0.01) // base never drops below 0.05
	}
}

func TestDrawLatencyWithinBounds(t *testing.T) {
	cfg := quietConfig()
	cfg.LatencyMin = time.Millisecond
	cfg.LatencyMax = 3 * time.Millisecond
	cfg.LatencyJitter = 0.05
	g := NewGenerator(cfg, fixedScorer(0.1), genRef)

	for i := 0; i < 100; i++ {
		d := g.drawLatency()
		assert.GreaterOrEqual(t, d, time.Duration(float64(cfg.LatencyMin)*0.95))
		assert.LessOrEqual(t, d, time.Duration(float64(cfg.LatencyMax)*1.05))
	}
}
