package core

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestExcludeOutliersClassicRule(t *testing.T) {
	// Values [1,2,3,4,100]: Q1=2, Q3=4, IQR=2, upper bound 4+1.5*2=7.
	csvText := "id,total_mat_lab_equip\n1,1\n2,2\n3,3\n4,4\n5,100\n"
	d := testDataset(t, csvText)
	got := d.ExcludeOutliers([]string{ColCombinedTotal}, 0.25, 0.75, 1.5)
	if got.Len() != 4 {
		t.Fatalf("len=%d, want 4", got.Len())
	}
	for i := 0; i < got.Len(); i++ {
		if got.Value(i, ColCombinedTotal).Num == 100 {
			t.Fatalf("outlier 100 survived")
		}
	}
}

func TestExcludeOutliersIdempotent(t *testing.T) {
	csvText := "id,total_mat_lab_equip\n1,1\n2,2\n3,3\n4,4\n5,100\n"
	d := testDataset(t, csvText)
	for _, p := range []OutlierPolicy{OutlierClassic, OutlierWide} {
		once := d.ExcludeOutliersPolicy([]string{ColCombinedTotal}, p)
		twice := once.ExcludeOutliersPolicy([]string{ColCombinedTotal}, p)
		if twice.Len() != once.Len() {
			t.Fatalf("policy %+v not idempotent: %d then %d", p, once.Len(), twice.Len())
		}
		if once.Len() > d.Len() {
			t.Fatalf("trim grew dataset")
		}
	}
}

func TestExcludeOutliersMissingValuesRetained(t *testing.T) {
	csvText := "id,total_mat_lab_equip\n1,1\n2,2\n3,3\n4,4\n5,\n6,100\n"
	d := testDataset(t, csvText)
	got := d.ExcludeOutliers([]string{ColCombinedTotal}, 0.25, 0.75, 1.5)
	// Absence is not an outlier: the blank row stays.
	found := false
	for i := 0; i < got.Len(); i++ {
		if got.Value(i, ColID).Num == 5 {
			found = true
		}
		if got.Value(i, ColCombinedTotal).Num == 100 {
			t.Fatalf("outlier survived")
		}
	}
	if !found {
		t.Fatalf("record with missing field was dropped")
	}
}

func TestExcludeOutliersMultipleFieldsIsAnd(t *testing.T) {
	csvText := "id,labor_total,material_total\n" +
		"1,1,10\n2,2,11\n3,3,12\n4,4,13\n5,100,14\n6,3,900\n"
	d := testDataset(t, csvText)
	both := d.ExcludeOutliers([]string{ColLaborTotal, ColMaterialTotal}, 0.25, 0.75, 1.5)
	sequential := d.
		ExcludeOutliers([]string{ColLaborTotal}, 0.25, 0.75, 1.5).
		ExcludeOutliers([]string{ColMaterialTotal}, 0.25, 0.75, 1.5)
	if both.Len() != 4 {
		t.Fatalf("len=%d, want 4", both.Len())
	}
	// Bounds are computed independently per field, so the combined trim
	// matches composing successive single-field trims on this data.
	if both.Len() != sequential.Len() {
		t.Fatalf("and-combined %d != sequential %d", both.Len(), sequential.Len())
	}
}

func TestQuantileLinearInterpolation(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	cases := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{1, 4},
	}
	for _, tc := range cases {
		if got := quantile(vals, tc.q); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("quantile(%v)=%v, want %v", tc.q, got, tc.want)
		}
	}
}

func TestHistogram(t *testing.T) {
	csvText := "id,total_mat_lab_equip\n1,0\n2,5\n3,10\n4,10\n5,\n"
	d := testDataset(t, csvText)
	bins := d.Histogram(ColCombinedTotal, 2)
	if len(bins) != 2 {
		t.Fatalf("bins=%d, want 2", len(bins))
	}
	// 0 falls in [0,5), 5 and both 10s in [5,10].
	if bins[0].Count != 1 || bins[1].Count != 3 {
		t.Fatalf("counts=%d,%d want 1,3", bins[0].Count, bins[1].Count)
	}
	if d.Histogram("no_such_column", 4) != nil {
		t.Fatalf("histogram of absent column should be empty")
	}
}

func TestHistogramOf(t *testing.T) {
	bins := HistogramOf([]float64{100, 200, 300, 900}, 2)
	if len(bins) != 2 {
		t.Fatalf("bins=%d, want 2", len(bins))
	}
	if bins[0].Count != 3 || bins[1].Count != 1 {
		t.Fatalf("counts=%d,%d want 3,1", bins[0].Count, bins[1].Count)
	}
	if HistogramOf(nil, 3) != nil {
		t.Fatalf("histogram of no values should be empty")
	}
	// All-equal values collapse into a single bin.
	flat := HistogramOf([]float64{7, 7, 7}, 4)
	if len(flat) != 1 || flat[0].Count != 3 {
		t.Fatalf("flat histogram = %+v", flat)
	}
}

func TestCorrelationMatrixSymmetricWithUnitDiagonal(t *testing.T) {
	csvText := "id,labor_total,material_total,equipment_total\n" +
		"1,1,2,5\n2,2,4,4\n3,3,6,3\n4,4,8,1\n"
	d := testDataset(t, csvText)
	fields := []string{ColLaborTotal, ColMaterialTotal, ColEquipmentTotal}
	m, err := d.CorrelationMatrix(fields)
	if err != nil {
		t.Fatalf("correlation: %v", err)
	}
	for i, a := range fields {
		for j, b := range fields {
			ab, _ := m.At(a, b)
			ba, _ := m.At(b, a)
			if ab != ba {
				t.Fatalf("matrix not symmetric at (%s,%s)", a, b)
			}
			if i == j && math.Abs(ab-1) > 1e-9 {
				t.Fatalf("diagonal (%s,%s)=%v, want 1", a, b, ab)
			}
		}
	}
	// labor and material are perfectly correlated by construction.
	if r, _ := m.At(ColLaborTotal, ColMaterialTotal); math.Abs(r-1) > 1e-9 {
		t.Fatalf("r(labor,material)=%v, want 1", r)
	}
	if r, _ := m.At(ColLaborTotal, ColEquipmentTotal); r >= 0 {
		t.Fatalf("r(labor,equipment)=%v, want negative", r)
	}
}

func TestCorrelationMatrixPairwiseComplete(t *testing.T) {
	// Row 3 is incomplete for (labor, material) but complete for
	// (labor, equipment); pairwise completion uses it for the latter.
	csvText := "id,labor_total,material_total,equipment_total\n" +
		"1,1,10,1\n2,2,12,2\n3,3,,9\n4,4,11,4\n"
	d := testDataset(t, csvText)
	m, err := d.CorrelationMatrix([]string{ColLaborTotal, ColMaterialTotal, ColEquipmentTotal})
	if err != nil {
		t.Fatalf("correlation: %v", err)
	}
	if r, ok := m.At(ColLaborTotal, ColMaterialTotal); !ok || math.IsNaN(r) {
		t.Fatalf("pairwise-complete pair produced %v", r)
	}
}

func TestCorrelationMatrixInsufficientData(t *testing.T) {
	csvText := "id,labor_total,material_total\n1,1,\n2,2,\n3,,5\n"
	d := testDataset(t, csvText)
	_, err := d.CorrelationMatrix([]string{ColLaborTotal, ColMaterialTotal})
	if err == nil {
		t.Fatalf("expected error for pair with <2 complete rows")
	}
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if !strings.Contains(err.Error(), ColMaterialTotal) {
		t.Fatalf("error should name the failing pair: %v", err)
	}
}
