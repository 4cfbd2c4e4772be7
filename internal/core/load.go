package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strings"
)

// LoadError reports an unreadable source. Callers at the boundary may
// recover by substituting a sample dataset; the core never does.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load cost data: %v", e.Err)
	}
	return fmt.Sprintf("load cost data from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CoercionWarning records a cell that could not be parsed as a number.
// The value is stored as missing and the load continues.
type CoercionWarning struct {
	Row    int // 1-based data row, excluding the header
	Column string
	Raw    string
}

// LoadReport summarizes a completed load.
type LoadReport struct {
	Rows     int
	Columns  []string
	Derived  int // combined totals filled in from components
	Warnings []CoercionWarning
}

// LoadOptions controls CSV decoding and coercion.
type LoadOptions struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune

	// Source names the origin for error reporting.
	Source string

	// NumericColumns lists columns coerced to numbers; nil means the
	// cost columns plus project_year.
	NumericColumns []string

	// DeriveCombinedTotal fills a missing total_mat_lab_equip from
	// labor+material+equipment. A stored total is never recomputed; the
	// two conventions disagree on some inputs, so derivations are counted
	// in the report instead of silently overwriting.
	DeriveCombinedTotal bool
}

func (o LoadOptions) numericSet() map[string]struct{} {
	cols := o.NumericColumns
	if cols == nil {
		cols = append(append([]string(nil), CostColumns...), ColProjectYear)
	}
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set
}

// Load reads delimited tabular text into a dataset. The first row is the
// header; header names are trimmed once at load time (trimming again is a
// no-op) and recognized names are canonicalized case-insensitively.
// Unrecognized columns pass through unchanged.
func Load(r io.Reader, opts LoadOptions) (*Dataset, *LoadReport, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, &LoadError{Source: opts.Source, Err: err}
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = canonicalName(h)
	}

	numeric := opts.numericSet()
	report := &LoadReport{Columns: columns}
	var records []Record
	row := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, &LoadError{Source: opts.Source, Err: err}
		}
		row++

		rec := make(Record, len(columns))
		for i, col := range columns {
			if i >= len(fields) {
				break
			}
			raw := fields[i]
			if _, isNumeric := numeric[col]; !isNumeric {
				rec[col] = Text(raw)
				continue
			}
			v := Coerce(raw)
			if v.Kind == KindText {
				// Unparseable number: keep the raw text for export but
				// mark the value missing so sums and means skip it.
				report.Warnings = append(report.Warnings, CoercionWarning{Row: row, Column: col, Raw: strings.TrimSpace(raw)})
				v = Value{Raw: raw}
			}
			rec[col] = v
		}
		if opts.DeriveCombinedTotal && rec[ColCombinedTotal].IsMissing() {
			if total, ok := combinedFromComponents(rec); ok {
				rec[ColCombinedTotal] = Number(total)
				report.Derived++
			}
		}
		records = append(records, rec)
	}
	report.Rows = len(records)

	if opts.DeriveCombinedTotal && !containsColumn(columns, ColCombinedTotal) {
		columns = append(columns, ColCombinedTotal)
		report.Columns = columns
	}
	return NewDataset(columns, records), report, nil
}

func combinedFromComponents(rec Record) (float64, bool) {
	labor, material, equipment := rec[ColLaborTotal], rec[ColMaterialTotal], rec[ColEquipmentTotal]
	if !labor.IsNumber() || !material.IsNumber() || !equipment.IsNumber() {
		return 0, false
	}
	return labor.Num + material.Num + equipment.Num, true
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// Fixed vocabularies for the sample generator.
var (
	sampleProjectCategories      = []string{"Residential", "Commercial", "Industrial", "Infrastructure", "Institutional"}
	sampleConstructionCategories = []string{"Sitework", "Structural", "Mechanical", "Electrical", "Plumbing", "Finishes"}
	sampleProjectTypes           = []string{"New Construction", "Renovation", "Addition"}
)

const (
	sampleCostMin = 500.0
	sampleCostMax = 250_000.0
)

// Sample generates a synthetic dataset of n line items for demo
// continuity when a real source is unreadable. Categorical fields are
// drawn uniformly from fixed lists, costs uniformly from a fixed range,
// and every record carries synthetic=true so the data is never mistaken
// for real cost figures.
func Sample(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	columns := []string{
		ColID, ColProjectID, ColSourceFileName,
		ColProjectCategory, ColConstructionCategory, ColProjectType, ColProjectYear,
		ColLaborTotal, ColMaterialTotal, ColEquipmentTotal, ColCombinedTotal,
		ColSynthetic,
	}
	projects := n/8 + 1
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		p := rng.Intn(projects) + 1
		labor := uniform(rng, sampleCostMin, sampleCostMax)
		material := uniform(rng, sampleCostMin, sampleCostMax)
		equipment := uniform(rng, sampleCostMin, sampleCostMax)
		records = append(records, Record{
			ColID:                   Number(float64(i + 1)),
			ColProjectID:            Text(fmt.Sprintf("P-%03d", p)),
			ColSourceFileName:       Text(fmt.Sprintf("project-%03d.csv", p)),
			ColProjectCategory:      Text(sampleProjectCategories[rng.Intn(len(sampleProjectCategories))]),
			ColConstructionCategory: Text(sampleConstructionCategories[rng.Intn(len(sampleConstructionCategories))]),
			ColProjectType:          Text(sampleProjectTypes[rng.Intn(len(sampleProjectTypes))]),
			ColProjectYear:          Number(float64(2015 + rng.Intn(10))),
			ColLaborTotal:           Number(labor),
			ColMaterialTotal:        Number(material),
			ColEquipmentTotal:       Number(equipment),
			ColCombinedTotal:        Number(labor + material + equipment),
			ColSynthetic:            Text("true"),
		})
	}
	d := NewDataset(columns, records)
	d.synthetic = true
	return d
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
