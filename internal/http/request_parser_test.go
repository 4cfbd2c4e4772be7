package http

import (
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"costcheck/internal/core"
)

func TestParseFilterParams_Defaults(t *testing.T) {
	p, err := ParseFilterParams(url.Values{})
	if err != nil {
		t.Fatalf("ParseFilterParams() error = %v", err)
	}
	if len(p.Selections) != 0 {
		t.Errorf("Selections = %v, want empty", p.Selections)
	}
	if p.Outliers != "off" {
		t.Errorf("Outliers = %q, want off", p.Outliers)
	}
	if !reflect.DeepEqual(p.OutlierFields, core.CostColumns) {
		t.Errorf("OutlierFields = %v, want %v", p.OutlierFields, core.CostColumns)
	}
}

func TestParseFilterParams_Selections(t *testing.T) {
	q := url.Values{}
	q.Add("project_category", "Infrastructure")
	q.Add("project_category", "Buildings")
	q.Add("construction_category", "New Construction")
	q.Add("project_type", "  ") // blank values are dropped

	p, err := ParseFilterParams(q)
	if err != nil {
		t.Fatalf("ParseFilterParams() error = %v", err)
	}

	want := map[string][]string{
		"project_category":      {"Infrastructure", "Buildings"},
		"construction_category": {"New Construction"},
	}
	if !reflect.DeepEqual(p.Selections, want) {
		t.Errorf("Selections = %v, want %v", p.Selections, want)
	}
}

func TestParseFilterParams_Outliers(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "off", query: "outliers=off", want: "off"},
		{name: "classic", query: "outliers=classic", want: "classic"},
		{name: "wide", query: "outliers=wide", want: "wide"},
		{name: "unknown preset", query: "outliers=aggressive", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p, err := ParseFilterParams(q)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFilterParams() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFilterParams() error = %v", err)
			}
			if p.Outliers != tt.want {
				t.Errorf("Outliers = %q, want %q", p.Outliers, tt.want)
			}
		})
	}
}

func TestParseFilterParams_OutlierFields(t *testing.T) {
	q, _ := url.ParseQuery("outlier_fields=labor_total,material_total")
	p, err := ParseFilterParams(q)
	if err != nil {
		t.Fatalf("ParseFilterParams() error = %v", err)
	}
	want := []string{"labor_total", "material_total"}
	if !reflect.DeepEqual(p.OutlierFields, want) {
		t.Errorf("OutlierFields = %v, want %v", p.OutlierFields, want)
	}

	q, _ = url.ParseQuery("outlier_fields=project_category")
	if _, err := ParseFilterParams(q); err == nil {
		t.Fatalf("ParseFilterParams() error = nil, want error for non-cost field")
	}
}

func TestFilterParamsApply(t *testing.T) {
	d := testDataset()

	p := FilterParams{
		Selections: map[string][]string{"project_category": {"Infrastructure"}},
	}
	view := p.Apply(d)
	if view.Len() >= d.Len() {
		t.Errorf("filtered Len() = %d, want fewer than %d", view.Len(), d.Len())
	}
	for _, rec := range view.Records() {
		if got := rec["project_category"].Raw; got != "Infrastructure" {
			t.Errorf("record category = %q, want Infrastructure", got)
		}
	}

	p = FilterParams{
		Outliers:      "classic",
		OutlierFields: []string{"total_mat_lab_equip"},
	}
	trimmed := p.Apply(d)
	if trimmed.Len() >= d.Len() {
		t.Errorf("outlier exclusion kept %d of %d rows, expected fewer", trimmed.Len(), d.Len())
	}
}

func TestParseGroupField(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/cost-by-category", nil)
	got, err := parseGroupField(r, "construction_category")
	if err != nil || got != "construction_category" {
		t.Errorf("parseGroupField() = (%q, %v), want default", got, err)
	}

	r = httptest.NewRequest("GET", "/api/cost-by-category?group=project_year", nil)
	got, err = parseGroupField(r, "construction_category")
	if err != nil || got != "project_year" {
		t.Errorf("parseGroupField() = (%q, %v), want project_year", got, err)
	}

	r = httptest.NewRequest("GET", "/api/cost-by-category?group=labor_total", nil)
	if _, err := parseGroupField(r, "construction_category"); err == nil {
		t.Errorf("parseGroupField() error = nil, want error for non-groupable field")
	}
}

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{name: "default", query: "", want: 20},
		{name: "explicit", query: "bins=40", want: 40},
		{name: "capped at ceiling", query: "bins=9999", want: 200},
		{name: "zero rejected", query: "bins=0", wantErr: true},
		{name: "negative rejected", query: "bins=-3", wantErr: true},
		{name: "garbage rejected", query: "bins=lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/cost-histogram?"+tt.query, nil)
			got, err := parsePositiveInt(r, "bins", 20, 200)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsePositiveInt() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePositiveInt() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parsePositiveInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseCorrelationFields(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/correlation", nil)
	got, err := parseCorrelationFields(r)
	if err != nil {
		t.Fatalf("parseCorrelationFields() error = %v", err)
	}
	if !reflect.DeepEqual(got, core.CostColumns) {
		t.Errorf("fields = %v, want cost columns", got)
	}

	r = httptest.NewRequest("GET", "/api/correlation?fields=labor_total,project_year", nil)
	got, err = parseCorrelationFields(r)
	if err != nil {
		t.Fatalf("parseCorrelationFields() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"labor_total", "project_year"}) {
		t.Errorf("fields = %v", got)
	}

	r = httptest.NewRequest("GET", "/api/correlation?fields=labor_total", nil)
	if _, err := parseCorrelationFields(r); err == nil {
		t.Errorf("parseCorrelationFields() error = nil, want error for single field")
	}

	r = httptest.NewRequest("GET", "/api/correlation?fields=labor_total,project_category", nil)
	if _, err := parseCorrelationFields(r); err == nil {
		t.Errorf("parseCorrelationFields() error = nil, want error for text field")
	}
}
