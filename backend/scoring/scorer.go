// Package scoring produces the authenticity-risk score attached to every
// simulated test. A scorer is selected once at startup: model-backed when a
// trained artifact is available, heuristic otherwise. Callers never branch
// on which variant is active.
package scoring

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// FakeThreshold is the score at or above which a batch is predicted fake.
// Shared by both scoring paths and by the single-prediction endpoint.
const FakeThreshold = 0.8

// missingExpiryDays is the sentinel fed to the model when no expiry is
// known: effectively never expires, so low expiry-driven suspicion.
const missingExpiryDays = 36500

// Scorer maps (expiry date, manufacturer) to a risk score in [0,1].
// Higher means more likely counterfeit or expired.
type Scorer interface {
	Score(expiry *time.Time, manufacturer string) float64
}

// PredictedFake reports whether a score crosses the fake threshold.
func PredictedFake(score float64) bool {
	return score >= FakeThreshold
}

// DaysTo returns the whole days from ref to expiry. ok is false when the
// expiry is unknown.
func DaysTo(ref time.Time, expiry *time.Time) (int, bool) {
	if expiry == nil {
		return 0, false
	}
	return int(expiry.Sub(ref).Hours() / 24), true
}

// HeuristicScorer implements the fallback scoring table keyed on expiry
// proximity. The random components are drawn from a seeded source so runs
// are reproducible; the internal source is guarded because stream workers
// score concurrently.
type HeuristicScorer struct {
	ref time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeuristicScorer builds a heuristic scorer using ref as the reference
// date for expiry proximity.
func NewHeuristicScorer(ref time.Time, seed int64) *HeuristicScorer {
	return &HeuristicScorer{
		ref: ref,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (h *HeuristicScorer) Score(expiry *time.Time, manufacturer string) float64 {
	days, known := DaysTo(h.ref, expiry)
	if !known {
		return h.uniform(0.25)
	}
	switch {
	case days <= 0:
		return 0.95
	case days <= 90:
		return 0.85
	case days <= 120:
		return 0.6
	default:
		return h.uniform(0.35)
	}
}

func (h *HeuristicScorer) uniform(max float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return math.Round(h.rng.Float64()*max*1000) / 1000
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
