// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of the dashboard's filter
// parameters. Every chart endpoint accepts the same set, so the parsed
// form is applied in one place and handlers work on the filtered view.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"costcheck/internal/core"
)

// Filterable fields exposed to the UI.
var filterFields = []string{
	core.ColProjectCategory,
	core.ColConstructionCategory,
	core.ColProjectType,
}

// Groupable fields accepted by the aggregate endpoints.
var groupFields = map[string]struct{}{
	core.ColProjectCategory:      {},
	core.ColConstructionCategory: {},
	core.ColProjectType:          {},
	core.ColProjectYear:          {},
	core.ColProjectID:            {},
	core.ColSourceFileName:       {},
}

// FilterParams holds the parsed dashboard filter state.
type FilterParams struct {
	// Accepted values per filterable field; empty means unconstrained.
	Selections map[string][]string

	// Outliers names the exclusion preset: "off", "classic" or "wide".
	Outliers string

	// OutlierFields are the numeric fields the exclusion applies to.
	OutlierFields []string
}

// ParseFilterParams reads the shared filter parameters from the query.
// Unknown outlier presets and fields are rejected; everything else is
// permissive because an empty selection just means "show all".
func ParseFilterParams(q url.Values) (FilterParams, error) {
	p := FilterParams{
		Selections:    make(map[string][]string),
		Outliers:      "off",
		OutlierFields: append([]string(nil), core.CostColumns...),
	}

	for _, field := range filterFields {
		for _, v := range q[field] {
			v = sanitizeInput(v)
			if v != "" {
				p.Selections[field] = append(p.Selections[field], v)
			}
		}
	}

	if v := strings.TrimSpace(q.Get("outliers")); v != "" {
		switch v {
		case "off", "classic", "wide":
			p.Outliers = v
		default:
			return p, fmt.Errorf("unknown outliers preset %q: must be off, classic or wide", v)
		}
	}

	if v := strings.TrimSpace(q.Get("outlier_fields")); v != "" {
		var fields []string
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if !isCostField(f) {
				return p, fmt.Errorf("unknown outlier field %q", f)
			}
			fields = append(fields, f)
		}
		if len(fields) > 0 {
			p.OutlierFields = fields
		}
	}

	return p, nil
}

func isCostField(name string) bool {
	for _, c := range core.CostColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Apply produces the filtered view: category filters first, then the
// optional outlier exclusion pass.
func (p FilterParams) Apply(d *core.Dataset) *core.Dataset {
	view := d.FilterBy(p.Selections)
	switch p.Outliers {
	case "classic":
		view = view.ExcludeOutliersPolicy(p.OutlierFields, core.OutlierClassic)
	case "wide":
		view = view.ExcludeOutliersPolicy(p.OutlierFields, core.OutlierWide)
	}
	return view
}

// parseGroupField validates the group query parameter against the
// groupable fields, defaulting when absent.
func parseGroupField(r *http.Request, fallback string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("group"))
	if v == "" {
		return fallback, nil
	}
	if _, ok := groupFields[v]; !ok {
		return "", fmt.Errorf("unknown group field %q", v)
	}
	return v, nil
}

// parseValueField validates the value query parameter against the cost
// columns, defaulting when absent.
func parseValueField(r *http.Request, fallback string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("value"))
	if v == "" {
		return fallback, nil
	}
	if !isCostField(v) {
		return "", fmt.Errorf("unknown value field %q", v)
	}
	return v, nil
}

// parsePositiveInt reads an integer query parameter with a default and
// an upper bound.
func parsePositiveInt(r *http.Request, name string, fallback, ceiling int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, v)
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}

// parseCorrelationFields reads the fields parameter for the correlation
// endpoint, defaulting to every cost column.
func parseCorrelationFields(r *http.Request) ([]string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("fields"))
	if v == "" {
		return append([]string(nil), core.CostColumns...), nil
	}
	var fields []string
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !isCostField(f) && f != core.ColProjectYear {
			return nil, fmt.Errorf("unknown correlation field %q", f)
		}
		fields = append(fields, f)
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("correlation needs at least two fields")
	}
	return fields, nil
}
