package scoring

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Bundle is the trained scoring artifact: anomaly-model parameters fitted
// over [days_to_expiry, manufacturer_id] plus the manufacturer vocabulary
// fitted alongside it.
type Bundle struct {
	// Model parameters. Raw anomaly output for feature vector x is
	// dot(weights, (x-mean)/scale) + bias; more anomalous -> larger raw.
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`

	// Vocabulary maps manufacturer name to its fitted integer id.
	Vocabulary map[string]int `json:"vocabulary"`
}

func (b *Bundle) validate() error {
	if len(b.Weights) != 2 || len(b.Mean) != 2 || len(b.Scale) != 2 {
		return fmt.Errorf("model bundle expects 2 features, got weights=%d mean=%d scale=%d",
			len(b.Weights), len(b.Mean), len(b.Scale))
	}
	for i, s := range b.Scale {
		if s == 0 {
			return fmt.Errorf("model bundle scale[%d] is zero", i)
		}
	}
	return nil
}

// ModelScorer scores with a loaded Bundle. Deterministic: the same inputs
// always produce the same score.
type ModelScorer struct {
	bundle *Bundle
	ref    time.Time
	oov    int
}

// NewModelScorer wraps a validated bundle. The out-of-vocabulary id is one
// past the largest fitted id, distinct from every known manufacturer.
func NewModelScorer(bundle *Bundle, ref time.Time) (*ModelScorer, error) {
	if err := bundle.validate(); err != nil {
		return nil, err
	}
	oov := 0
	for _, id := range bundle.Vocabulary {
		if id >= oov {
			oov = id + 1
		}
	}
	return &ModelScorer{bundle: bundle, ref: ref, oov: oov}, nil
}

func (m *ModelScorer) Score(expiry *time.Time, manufacturer string) float64 {
	days := missingExpiryDays
	if d, known := DaysTo(m.ref, expiry); known {
		days = d
	}

	manID, ok := m.bundle.Vocabulary[manufacturer]
	if !ok {
		manID = m.oov
	}

	x := [2]float64{float64(days), float64(manID)}
	raw := m.bundle.Bias
	for i := 0; i < 2; i++ {
		raw += m.bundle.Weights[i] * (x[i] - m.bundle.Mean[i]) / m.bundle.Scale[i]
	}

	// Monotonic squash of the raw anomaly output into [0,1].
	score := 1.0 / (1.0 + math.Exp(-4.0*raw))
	return clamp01(score)
}

// Load builds the scorer for the process. When path is empty, the file is
// unreadable, or the bundle is malformed, it degrades to the heuristic
// scorer; a missing model is never fatal.
func Load(path string, ref time.Time, seed int64) Scorer {
	if path == "" {
		log.Printf("scoring: no model configured, using heuristic scoring")
		return NewHeuristicScorer(ref, seed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("scoring: cannot read model %s (%v), using heuristic scoring", path, err)
		return NewHeuristicScorer(ref, seed)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		log.Printf("scoring: cannot parse model %s (%v), using heuristic scoring", path, err)
		return NewHeuristicScorer(ref, seed)
	}

	scorer, err := NewModelScorer(&bundle, ref)
	if err != nil {
		log.Printf("scoring: invalid model %s (%v), using heuristic scoring", path, err)
		return NewHeuristicScorer(ref, seed)
	}

	log.Printf("scoring: loaded model bundle from %s (%d manufacturers in vocabulary)", path, len(bundle.Vocabulary))
	return scorer
}
