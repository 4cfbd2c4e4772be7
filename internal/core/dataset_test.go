package core

import (
	"strings"
	"testing"
)

func testDataset(t *testing.T, csvText string) *Dataset {
	t.Helper()
	d, _, err := Load(strings.NewReader(csvText), LoadOptions{Source: "test"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

const fiveRecordCSV = `id,project_category,construction_category,total_mat_lab_equip
1,Residential,Structural,100
2,Commercial,Structural,200
3,Residential,Electrical,300
4,Industrial,Plumbing,400
5,Commercial,Finishes,500
`

func TestFilterByIdentity(t *testing.T) {
	d := testDataset(t, fiveRecordCSV)

	cases := []map[string][]string{
		nil,
		{},
		{"project_category": nil},
		{"project_category": {}}, // empty multi-select means "show all"
	}
	for i, preds := range cases {
		got := d.FilterBy(preds)
		if got.Len() != d.Len() {
			t.Fatalf("case %d: len=%d, want %d", i, got.Len(), d.Len())
		}
	}
}

func TestFilterByFullValueSetIsIdentity(t *testing.T) {
	d := testDataset(t, fiveRecordCSV)
	all := d.DistinctValues(ColProjectCategory)
	got := d.FilterBy(map[string][]string{ColProjectCategory: all})
	if got.Len() != d.Len() {
		t.Fatalf("len=%d, want %d", got.Len(), d.Len())
	}
	for i := 0; i < d.Len(); i++ {
		if got.Value(i, ColID).Raw != d.Value(i, ColID).Raw {
			t.Fatalf("row %d reordered", i)
		}
	}
}

func TestFilterByMembership(t *testing.T) {
	d := testDataset(t, fiveRecordCSV)
	got := d.FilterBy(map[string][]string{ColProjectCategory: {"Residential"}})
	if got.Len() != 2 {
		t.Fatalf("len=%d, want 2", got.Len())
	}
	// Original relative order preserved.
	if got.Value(0, ColID).Num != 1 || got.Value(1, ColID).Num != 3 {
		t.Fatalf("unexpected ids %v %v", got.Value(0, ColID).Raw, got.Value(1, ColID).Raw)
	}
}

func TestFilterByNeverGrows(t *testing.T) {
	d := testDataset(t, fiveRecordCSV)
	preds := map[string][]string{
		ColProjectCategory:      {"Residential", "Commercial"},
		ColConstructionCategory: {"Structural"},
	}
	got := d.FilterBy(preds)
	if got.Len() > d.Len() {
		t.Fatalf("filter grew dataset: %d > %d", got.Len(), d.Len())
	}
	if got.Len() != 2 {
		t.Fatalf("len=%d, want 2", got.Len())
	}
}

func TestFilterByDoesNotMutateReceiver(t *testing.T) {
	d := testDataset(t, fiveRecordCSV)
	before := d.Len()
	_ = d.FilterBy(map[string][]string{ColProjectCategory: {"Residential"}})
	if d.Len() != before {
		t.Fatalf("receiver mutated: len=%d, want %d", d.Len(), before)
	}
}

func TestDistinctValuesFirstSeenOrder(t *testing.T) {
	d := testDataset(t, fiveRecordCSV)
	got := d.DistinctValues(ColProjectCategory)
	want := []string{"Residential", "Commercial", "Industrial"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		num  float64
	}{
		{"100", KindNumber, 100},
		{" 12.5 ", KindNumber, 12.5},
		{"-42", KindNumber, -42},
		{"1,250.75", KindNumber, 1250.75},
		{"1,234,567.89", KindNumber, 1234567.89},
		{"-1,234", KindNumber, -1234},
		{"", KindMissing, 0},
		{"   ", KindMissing, 0},
		{"n/a", KindText, 0},
		// Malformed separators stay text rather than collapsing into a
		// number nobody typed.
		{"1,2", KindText, 0},
		{"12,34", KindText, 0},
		{",123", KindText, 0},
		{"1,234,56", KindText, 0},
		{"1,234.5,6", KindText, 0},
	}
	for _, tc := range cases {
		v := Coerce(tc.in)
		if v.Kind != tc.kind {
			t.Fatalf("Coerce(%q) kind=%v, want %v", tc.in, v.Kind, tc.kind)
		}
		if v.Kind == KindNumber && v.Num != tc.num {
			t.Fatalf("Coerce(%q) num=%v, want %v", tc.in, v.Num, tc.num)
		}
	}
}
