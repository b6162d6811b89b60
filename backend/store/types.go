package store

import (
	"time"

	"github.com/mediguard/mediguard/backend/simulator"
)

// Alert severity levels.
const (
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

// Alert is a persisted rule violation. Created by the evaluator exactly when
// a rule fires; immutable once appended.
type Alert struct {
	ID                string              `json:"id"`
	Timestamp         time.Time           `json:"timestamp"`
	Level             string              `json:"level"`
	Manufacturer      string              `json:"manufacturer"`
	ManufacturerPhone string              `json:"manufacturer_phone,omitempty"`
	Message           string              `json:"message"`
	Event             simulator.TestEvent `json:"data"`
}
