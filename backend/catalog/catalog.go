// Package catalog loads the read-only reference table of manufacturer and
// expiry records that the simulator samples test batches from.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// Row is one catalog record. Expiry is nil when the source value was
// missing or unparsable.
type Row struct {
	Manufacturer      string     `json:"manufacturer"`
	Expiry            *time.Time `json:"exp_date,omitempty"`
	ManufacturerPhone string     `json:"manufacturer_phone,omitempty"`
	Batch             string     `json:"batch,omitempty"`
}

// Catalog is immutable after Load and safe to share across goroutines
// without synchronization.
type Catalog struct {
	rows          []Row
	fields        []string
	manufacturers []string
}

// Schema is the summary shape served by the control surface.
type Schema struct {
	Manufacturers []string `json:"manufacturers"`
	Fields        []string `json:"fields"`
	SampleCount   int      `json:"sample_count"`
}

// Date layouts accepted for the expiry column. Anything else is treated as
// unknown expiry, never as a load error.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"01-2006",
}

// Load reads a CSV catalog from path. The file must have a header row;
// recognized columns are manufacturer, exp_date (alias: expiry),
// manufacturer_phone and batch. Extra columns are kept in the schema field
// list but otherwise ignored.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads catalog rows from r. Exposed separately so tests can feed
// in-memory data.
func Parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("catalog is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	fields := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		cols[name] = i
		fields = append(fields, name)
	}

	manIdx, hasMan := cols["manufacturer"]
	expIdx, hasExp := cols["exp_date"]
	if !hasExp {
		expIdx, hasExp = cols["expiry"]
	}
	phoneIdx, hasPhone := cols["manufacturer_phone"]
	batchIdx, hasBatch := cols["batch"]

	var rows []Row
	malformed := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row: %w", err)
		}

		row := Row{Manufacturer: "Unknown"}
		if hasMan {
			if v := cell(record, manIdx); v != "" {
				row.Manufacturer = v
			}
		}
		if hasExp {
			if v := cell(record, expIdx); v != "" {
				if t, ok := parseDate(v); ok {
					row.Expiry = &t
				} else {
					malformed++
				}
			}
		}
		if hasPhone {
			row.ManufacturerPhone = cell(record, phoneIdx)
		}
		if hasBatch {
			row.Batch = cell(record, batchIdx)
		}
		rows = append(rows, row)
	}

	if malformed > 0 {
		log.Printf("catalog: %d rows with unparsable expiry dates, treating as unknown", malformed)
	}

	seen := make(map[string]bool)
	var manufacturers []string
	for _, row := range rows {
		if !seen[row.Manufacturer] {
			seen[row.Manufacturer] = true
			manufacturers = append(manufacturers, row.Manufacturer)
		}
	}
	sort.Strings(manufacturers)

	return &Catalog{rows: rows, fields: fields, manufacturers: manufacturers}, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rows)
}

// Row returns the row at index i.
func (c *Catalog) Row(i int) (Row, bool) {
	if c == nil || i < 0 || i >= len(c.rows) {
		return Row{}, false
	}
	return c.rows[i], true
}

// Manufacturers returns the sorted distinct manufacturer names.
func (c *Catalog) Manufacturers() []string {
	if c == nil {
		return nil
	}
	return c.manufacturers
}

// PhoneFor returns the first non-empty phone number recorded for the given
// manufacturer, or "" when none is known.
func (c *Catalog) PhoneFor(manufacturer string) string {
	if c == nil {
		return ""
	}
	for _, row := range c.rows {
		if row.Manufacturer == manufacturer && row.ManufacturerPhone != "" {
			return row.ManufacturerPhone
		}
	}
	return ""
}

// Schema summarizes the loaded catalog for the control surface.
func (c *Catalog) Schema() Schema {
	if c == nil {
		return Schema{}
	}
	return Schema{
		Manufacturers: c.manufacturers,
		Fields:        c.fields,
		SampleCount:   len(c.rows),
	}
}
