package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData marks a statistic that has too few valid rows to be
// meaningful. It is surfaced to the caller instead of a silent NaN.
var ErrInsufficientData = errors.New("insufficient data")

// OutlierPolicy names a quantile/multiplier configuration for
// ExcludeOutliers. The two policies in use differ and neither is
// canonical, so both ship as configuration.
type OutlierPolicy struct {
	LowerQuantile float64
	UpperQuantile float64
	Multiplier    float64
}

var (
	// OutlierClassic is the textbook interquartile-range rule.
	OutlierClassic = OutlierPolicy{LowerQuantile: 0.25, UpperQuantile: 0.75, Multiplier: 1.5}
	// OutlierWide trims only extreme tails.
	OutlierWide = OutlierPolicy{LowerQuantile: 0.05, UpperQuantile: 0.95, Multiplier: 2}
)

// ExcludeOutliers returns a new dataset without records whose value for
// any of the named numeric fields falls outside that field's quantile
// bounds [Qlo - m*IQR, Qhi + m*IQR]. Bounds are computed independently
// per field and combined as an AND, the same result as composing
// successive single-field trims. A record missing a named field passes
// that field's test; absence is not an outlier. Applying the same trim
// twice yields the first result.
func (d *Dataset) ExcludeOutliers(fields []string, lowerQuantile, upperQuantile, multiplier float64) *Dataset {
	type bound struct {
		field  string
		lo, hi float64
	}
	var bounds []bound
	for _, f := range fields {
		vals := sortedCopy(d.numericColumn(f))
		if len(vals) == 0 {
			continue
		}
		qlo := quantile(vals, lowerQuantile)
		qhi := quantile(vals, upperQuantile)
		iqr := qhi - qlo
		bounds = append(bounds, bound{field: f, lo: qlo - multiplier*iqr, hi: qhi + multiplier*iqr})
	}
	if len(bounds) == 0 {
		return d.derive(d.records)
	}

	var kept []Record
	for _, rec := range d.records {
		ok := true
		for _, b := range bounds {
			v := rec[b.field]
			if !v.IsNumber() {
				continue
			}
			if v.Num < b.lo || v.Num > b.hi {
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

// ExcludeOutliersPolicy applies a named policy.
func (d *Dataset) ExcludeOutliersPolicy(fields []string, p OutlierPolicy) *Dataset {
	return d.ExcludeOutliers(fields, p.LowerQuantile, p.UpperQuantile, p.Multiplier)
}

// quantile returns the q-th quantile of ascending values using linear
// interpolation between closest ranks, the convention the upstream data
// tooling used. vals must be non-empty and sorted.
func quantile(vals []float64, q float64) float64 {
	if q <= 0 {
		return vals[0]
	}
	if q >= 1 {
		return vals[len(vals)-1]
	}
	h := q * float64(len(vals)-1)
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	if lo+1 >= len(vals) {
		return vals[lo]
	}
	return vals[lo] + frac*(vals[lo+1]-vals[lo])
}

// HistogramBin is one equal-width bin; Lo is inclusive, Hi exclusive
// except for the last bin which includes the maximum.
type HistogramBin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram buckets the non-missing values of a numeric column into
// equal-width bins. An empty column yields an empty histogram, not an
// error; there is simply nothing to show.
func (d *Dataset) Histogram(field string, bins int) []HistogramBin {
	return HistogramOf(d.numericColumn(field), bins)
}

// HistogramOf buckets arbitrary values into equal-width bins. It backs
// both the per-row column histogram and histograms over derived series
// such as per-project totals.
func HistogramOf(vals []float64, bins int) []HistogramBin {
	if bins < 1 {
		bins = 1
	}
	if len(vals) == 0 {
		return nil
	}
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		return []HistogramBin{{Lo: min, Hi: max, Count: len(vals)}}
	}
	width := (max - min) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lo = min + float64(i)*width
		out[i].Hi = min + float64(i+1)*width
	}
	out[bins-1].Hi = max
	for _, v := range vals {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

// Matrix is a symmetric correlation matrix over named fields.
type Matrix struct {
	Fields []string
	Coef   [][]float64
}

// At returns the coefficient for a pair of fields.
func (m *Matrix) At(a, b string) (float64, bool) {
	ia, ib := -1, -1
	for i, f := range m.Fields {
		if f == a {
			ia = i
		}
		if f == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0, false
	}
	return m.Coef[ia][ib], true
}

// CorrelationMatrix computes Pearson coefficients over every pair of the
// named fields, using rows where both fields are present
// (pairwise-complete, not listwise). A pair with fewer than two complete
// rows, or with no variance on either side, fails with
// ErrInsufficientData rather than yielding NaN.
func (d *Dataset) CorrelationMatrix(fields []string) (*Matrix, error) {
	m := &Matrix{Fields: append([]string(nil), fields...)}
	m.Coef = make([][]float64, len(fields))
	for i := range m.Coef {
		m.Coef[i] = make([]float64, len(fields))
	}
	for i := 0; i < len(fields); i++ {
		for j := i; j < len(fields); j++ {
			r, err := d.pairCorrelation(fields[i], fields[j])
			if err != nil {
				return nil, fmt.Errorf("correlate %s with %s: %w", fields[i], fields[j], err)
			}
			m.Coef[i][j] = r
			m.Coef[j][i] = r
		}
	}
	return m, nil
}

func (d *Dataset) pairCorrelation(a, b string) (float64, error) {
	var xs, ys []float64
	for _, rec := range d.records {
		va, vb := rec[a], rec[b]
		if !va.IsNumber() || !vb.IsNumber() {
			continue
		}
		xs = append(xs, va.Num)
		ys = append(ys, vb.Num)
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("%w: %d complete rows", ErrInsufficientData, len(xs))
	}
	return pearson(xs, ys)
}

func pearson(xs, ys []float64) (float64, error) {
	n := float64(len(xs))
	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, fmt.Errorf("%w: no variance", ErrInsufficientData)
	}
	return cov / math.Sqrt(varX*varY), nil
}
