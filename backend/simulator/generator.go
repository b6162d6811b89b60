package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mediguard/mediguard/backend/catalog"
	"github.com/mediguard/mediguard/backend/observability"
	"github.com/mediguard/mediguard/backend/scoring"
)

// GeneratorConfig tunes the simulated hardware.
type GeneratorConfig struct {
	LatencyMin     time.Duration // lower bound of simulated test time
	LatencyMax     time.Duration // upper bound of simulated test time
	LatencyJitter  float64       // +/- fraction applied to the drawn latency
	FailureRate    float64       // probability a tick yields an ERROR event
	FlipRate       float64       // probability the PASS/FAIL label is flipped
	NoiseLevel     float64       // sigma of the per-channel Gaussian noise
	SensorChannels int
	Seed           int64
}

// DefaultGeneratorConfig mirrors the hardware rig being modeled: tests take
// 0.2-1.5s and fault about once per hundred runs.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		LatencyMin:     200 * time.Millisecond,
		LatencyMax:     1500 * time.Millisecond,
		LatencyJitter:  0.05,
		FailureRate:    0.01,
		FlipRate:       0.01,
		NoiseLevel:     0.05,
		SensorChannels: 3,
		Seed:           42,
	}
}

// Generator produces one TestEvent per tick. It is shared by all stream
// workers; the random source is guarded so ticks from concurrent streams
// stay independent.
type Generator struct {
	cfg    GeneratorConfig
	scorer scoring.Scorer
	ref    time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator builds a generator scoring against the given reference date.
func NewGenerator(cfg GeneratorConfig, scorer scoring.Scorer, ref time.Time) *Generator {
	if cfg.SensorChannels <= 0 {
		cfg.SensorChannels = 3
	}
	return &Generator{
		cfg:    cfg,
		scorer: scorer,
		ref:    ref,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Next runs one simulated hardware test against row. It blocks the calling
// worker for the drawn latency; that is the only blocking point of a tick.
func (g *Generator) Next(row catalog.Row) TestEvent {
	duration := g.drawLatency()
	time.Sleep(duration)

	if g.chance(g.cfg.FailureRate) {
		observability.EventsGenerated.WithLabelValues(StatusError).Inc()
		return TestEvent{
			Status:    StatusError,
			ErrorMsg:  "hardware timeout or sensor disconnect",
			Duration:  duration.Seconds(),
			Timestamp: time.Now().UTC(),
		}
	}

	score := g.scorer.Score(row.Expiry, row.Manufacturer)
	predicted := scoring.PredictedFake(score)

	ev := TestEvent{
		Status:         StatusOK,
		Manufacturer:   row.Manufacturer,
		Batch:          row.Batch,
		Expiry:         row.Expiry,
		FakeScore:      math.Round(score*10000) / 10000,
		PredictedFake:  predicted,
		TestResult:     g.testResult(predicted),
		SensorReadings: g.sensorReadings(score),
		Duration:       duration.Seconds(),
		Timestamp:      time.Now().UTC(),
	}
	if days, known := scoring.DaysTo(g.ref, row.Expiry); known {
		ev.DaysToExpiry = &days
	}

	observability.EventsGenerated.WithLabelValues(StatusOK).Inc()
	return ev
}

func (g *Generator) drawLatency() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	span := float64(g.cfg.LatencyMax - g.cfg.LatencyMin)
	d := float64(g.cfg.LatencyMin)
	if span > 0 {
		d += g.rng.Float64() * span
	}
	j := g.cfg.LatencyJitter
	d *= 1 - j + g.rng.Float64()*2*j
	return time.Duration(d)
}

func (g *Generator) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

// testResult derives the auxiliary PASS/FAIL label and occasionally flips it
// to emulate sensor unreliability. The flip never touches the score fields.
func (g *Generator) testResult(predictedFake bool) string {
	result := ResultPass
	if predictedFake {
		result = ResultFail
	}
	if g.chance(g.cfg.FlipRate) {
		if result == ResultPass {
			return ResultFail
		}
		return ResultPass
	}
	return result
}

// sensorReadings models the optical channels: a clean batch reads high, a
// suspicious one low, with per-channel drift and independent noise.
func (g *Generator) sensorReadings(score float64) []float64 {
	base := math.Max(0.05, 1.0-score)
	readings := make([]float64, g.cfg.SensorChannels)

	g.mu.Lock()
	defer g.mu.Unlock()
	for ch := range readings {
		drift := 1.0 + 0.02*(float64(ch)-float64(g.cfg.SensorChannels-1)/2)
		noise := g.rng.NormFloat64() * g.cfg.NoiseLevel
		s := base * drift * (1.0 + noise)
		readings[ch] = math.Max(0, math.Min(5, s))
	}
	return readings
}
