package core

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Canonical column names recognized by the loader. Matching is
// case-insensitive and ignores surrounding whitespace; anything else is
// passed through with its header trimmed but otherwise unchanged.
const (
	ColID                   = "id"
	ColProjectID            = "project_id"
	ColProjectCategory      = "project_category"
	ColConstructionCategory = "construction_category"
	ColProjectType          = "project_type"
	ColProjectYear          = "project_year"
	ColFileName             = "file_name"
	ColSourceFileName       = "source_file_name"
	ColLaborTotal           = "labor_total"
	ColMaterialTotal        = "material_total"
	ColEquipmentTotal       = "equipment_total"
	ColCombinedTotal        = "total_mat_lab_equip"

	// ColSynthetic marks records produced by the sample generator so that
	// demo data is never mistaken for real cost data.
	ColSynthetic = "synthetic"
)

var canonicalColumns = []string{
	ColID,
	ColProjectID,
	ColProjectCategory,
	ColConstructionCategory,
	ColProjectType,
	ColProjectYear,
	ColFileName,
	ColSourceFileName,
	ColLaborTotal,
	ColMaterialTotal,
	ColEquipmentTotal,
	ColCombinedTotal,
}

// CostColumns are the columns coerced to numbers by default.
var CostColumns = []string{ColLaborTotal, ColMaterialTotal, ColEquipmentTotal, ColCombinedTotal}

type (
	// Kind classifies a cell value.
	Kind int

	// Value is a single cell: text, a number, or missing. A value that
	// failed numeric coercion is Missing, never zero; zero is a valid cost.
	Value struct {
		Raw  string
		Num  float64
		Kind Kind
	}

	// Record maps column name to value. Column order lives on the Dataset.
	Record map[string]Value

	// Dataset is an ordered, immutable collection of cost records. Filter
	// and derive operations return new datasets sharing the underlying
	// records; nothing mutates a dataset after load.
	Dataset struct {
		columns   []string
		records   []Record
		synthetic bool
	}
)

const (
	KindMissing Kind = iota
	KindText
	KindNumber
)

// Text builds a text value. Empty or blank text is missing.
func Text(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{Raw: s}
	}
	return Value{Raw: s, Kind: KindText}
}

// Number builds a numeric value with a formatted raw representation.
func Number(f float64) Value {
	return Value{Raw: strconv.FormatFloat(f, 'g', -1, 64), Num: f, Kind: KindNumber}
}

// Coerce parses s as a number, keeping the original text. Commas are
// accepted only as well-placed thousands separators; anything else with a
// comma stays text, so malformed cells surface as coercion warnings
// instead of silently becoming numbers. Unparseable non-blank text stays
// a text value; callers decide whether that counts as a coercion failure
// for the column.
func Coerce(s string) Value {
	t := strings.TrimSpace(s)
	if t == "" {
		return Value{Raw: s}
	}
	if strings.Contains(t, ",") {
		if !thousandsPattern.MatchString(t) {
			return Value{Raw: s, Kind: KindText}
		}
		t = strings.ReplaceAll(t, ",", "")
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return Value{Raw: s, Num: f, Kind: KindNumber}
	}
	return Value{Raw: s, Kind: KindText}
}

// thousandsPattern matches numbers like "1,234" and "-1,234,567.89": one
// to three leading digits, then comma-separated groups of exactly three.
var thousandsPattern = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

func (v Value) IsMissing() bool { return v.Kind == KindMissing }
func (v Value) IsNumber() bool  { return v.Kind == KindNumber }

// String returns the exportable representation: the original text when the
// value came from a source, or the formatted number for derived values.
func (v Value) String() string { return v.Raw }

// key is the representation used for filter membership and group keys.
func (v Value) key() string {
	if v.Kind == KindMissing {
		return ""
	}
	return strings.TrimSpace(v.Raw)
}

// NewDataset builds a dataset from explicit columns and records. Records
// are taken as-is; the loader is responsible for normalization.
func NewDataset(columns []string, records []Record) *Dataset {
	return &Dataset{columns: columns, records: records}
}

func (d *Dataset) Len() int { return len(d.records) }

// Synthetic reports whether the dataset came from the sample generator.
func (d *Dataset) Synthetic() bool { return d.synthetic }

// Columns returns the column order as held, used verbatim on export.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Records returns the record slice. Records are shared, not copied;
// callers must treat them as read-only.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Record returns the i-th record.
func (d *Dataset) Record(i int) Record { return d.records[i] }

// Value returns the named field of the i-th record; absent columns are
// missing values.
func (d *Dataset) Value(i int, column string) Value {
	return d.records[i][column]
}

// HasColumn reports whether the dataset holds the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.columns {
		if c == name {
			return true
		}
	}
	return false
}

// AsSynthetic returns a view of the dataset flagged as sample data.
// Stores use it to restore the flag when rebuilding a persisted sample.
func (d *Dataset) AsSynthetic() *Dataset {
	return &Dataset{columns: d.columns, records: d.records, synthetic: true}
}

// derive builds a new dataset over a subset of records, keeping columns
// and the synthetic marker.
func (d *Dataset) derive(records []Record) *Dataset {
	return &Dataset{columns: d.columns, records: records, synthetic: d.synthetic}
}

// FilterBy returns a new dataset keeping records whose value for each
// constrained field is a member of the accepted set. An empty accepted set
// (or an absent entry) leaves that field unconstrained, matching the UI
// idiom where an empty multi-select means "show all". Record order is
// preserved; an empty result is a valid dataset.
func (d *Dataset) FilterBy(predicates map[string][]string) *Dataset {
	active := make(map[string]map[string]struct{})
	for field, accepted := range predicates {
		if len(accepted) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(accepted))
		for _, v := range accepted {
			set[strings.TrimSpace(v)] = struct{}{}
		}
		active[field] = set
	}
	if len(active) == 0 {
		return d.derive(d.records)
	}

	var kept []Record
	for _, rec := range d.records {
		ok := true
		for field, set := range active {
			if _, member := set[rec[field].key()]; !member {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return d.derive(kept)
}

// DistinctValues returns the distinct non-missing values of a column in
// first-seen order, for populating filter controls.
func (d *Dataset) DistinctValues(column string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range d.records {
		v := rec[column]
		if v.IsMissing() {
			continue
		}
		k := v.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// DistinctCount counts distinct non-missing values of a column.
func (d *Dataset) DistinctCount(column string) int {
	return len(d.DistinctValues(column))
}

// numericColumn collects the non-missing numeric values of a column.
func (d *Dataset) numericColumn(column string) []float64 {
	var out []float64
	for _, rec := range d.records {
		if v := rec[column]; v.IsNumber() {
			out = append(out, v.Num)
		}
	}
	return out
}

// canonicalName maps a header to its recognized canonical column name, or
// returns the trimmed header unchanged when unrecognized.
func canonicalName(header string) string {
	trimmed := strings.TrimSpace(header)
	lowered := strings.ToLower(trimmed)
	for _, c := range canonicalColumns {
		if lowered == c {
			return c
		}
	}
	return trimmed
}

// sortedCopy returns an ascending copy of vs.
func sortedCopy(vs []float64) []float64 {
	out := make([]float64, len(vs))
	copy(out, vs)
	sort.Float64s(out)
	return out
}
