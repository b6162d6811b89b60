package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mediguard/mediguard/backend/catalog"
)

// Selector yields the next catalog row to test. Returning ok=false ends the
// stream (an explicit index list has been exhausted).
type Selector func() (catalog.Row, bool)

// Manufacturer pool used when no catalog is available.
var synthManufacturers = []string{"PharmaCorp", "HealthMeds", "MediCare", "GlobalPharma"}

// SelectRandom draws rows uniformly with replacement. With an empty or
// missing catalog it synthesizes plausible rows instead, so a stream can run
// without any reference data.
func SelectRandom(c *catalog.Catalog, rng *rand.Rand) Selector {
	return func() (catalog.Row, bool) {
		if c.Len() == 0 {
			return synthesizeRow(rng), true
		}
		row, _ := c.Row(rng.Intn(c.Len()))
		return row, true
	}
}

// SelectIndices replays the given catalog rows in order and then ends the
// stream. Indices must be validated with ValidateIndices before use.
func SelectIndices(c *catalog.Catalog, indices []int) Selector {
	pos := 0
	return func() (catalog.Row, bool) {
		if pos >= len(indices) {
			return catalog.Row{}, false
		}
		row, ok := c.Row(indices[pos])
		pos++
		return row, ok
	}
}

// ValidateIndices rejects out-of-range row indices before a worker is
// spawned.
func ValidateIndices(c *catalog.Catalog, indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= c.Len() {
			return fmt.Errorf("row index %d out of range, catalog has %d rows", i, c.Len())
		}
	}
	return nil
}

func synthesizeRow(rng *rand.Rand) catalog.Row {
	offset := rng.Intn(761) - 30 // days, in [-30, 730]
	expiry := time.Now().UTC().AddDate(0, 0, offset)
	return catalog.Row{
		Manufacturer: synthManufacturers[rng.Intn(len(synthManufacturers))],
		Expiry:       &expiry,
		Batch:        fmt.Sprintf("SIM%04d", 1000+rng.Intn(9000)),
	}
}
