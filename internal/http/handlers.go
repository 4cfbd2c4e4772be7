package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"costcheck/internal/core"
	applog "costcheck/internal/log"
)

// handleIndex renders the dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.templates == nil {
		http.Error(w, "Templates unavailable", http.StatusInternalServerError)
		return
	}

	d, err := s.datasets.Dataset(r.Context())
	if err != nil {
		http.Error(w, "Dataset unavailable", http.StatusInternalServerError)
		return
	}

	data := struct {
		Source    string
		Rows      int
		Synthetic bool
		Filters   []filterOptions
	}{
		Source:    s.datasets.SourceIdentity(),
		Rows:      d.Len(),
		Synthetic: d.Synthetic(),
		Filters:   buildFilterOptions(d),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render dashboard",
			applog.FieldError, err,
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
	}
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady reports readiness: templates parsed and a dataset held or
// loadable. Degraded snapshot and sample data still count as ready; the
// dashboard can serve them.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "templates unavailable")
		return
	}
	if _, err := s.datasets.Dataset(r.Context()); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return
	}
	writeJSON(w, map[string]any{"status": "ready"})
}

// handleSummary returns the headline numbers for the filtered view.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}
	view := params.Apply(d)

	total := view.Sum(core.ColCombinedTotal)
	count := 0
	for _, rec := range view.Records() {
		if rec[core.ColCombinedTotal].IsNumber() {
			count++
		}
	}
	mean := 0.0
	if count > 0 {
		mean = total / float64(count)
	}

	warnings := 0
	if rep := s.datasets.Report(); rep != nil {
		warnings = len(rep.Warnings)
	}

	writeJSON(w, map[string]any{
		"source":          s.datasets.SourceIdentity(),
		"version":         s.datasets.Version(),
		"synthetic":       view.Synthetic(),
		"rows":            view.Len(),
		"rows_unfiltered": d.Len(),
		"projects":        view.DistinctCount(core.ColSourceFileName),
		"total_cost":      total,
		"total_display":   formatShorthand(total),
		"mean_cost":       mean,
		"mean_display":    formatShorthand(mean),
		"warnings":        warnings,
	})
}

// handleCostByCategory sums a cost column per group, largest first.
func (s *Server) handleCostByCategory(w http.ResponseWriter, r *http.Request) {
	s.handleAggregate(w, r, core.OpSum)
}

// handleCountByCategory counts valid cost rows per group, largest first.
func (s *Server) handleCountByCategory(w http.ResponseWriter, r *http.Request) {
	s.handleAggregate(w, r, core.OpCount)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request, op core.AggOp) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}

	group, err := parseGroupField(r, core.ColConstructionCategory)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := parseValueField(r, core.ColCombinedTotal)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := params.Apply(d)
	groups, err := view.AggregateBy(group, value, op)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, map[string]any{
		"group":  group,
		"value":  value,
		"op":     string(op),
		"groups": core.SortByValueDesc(groups),
	})
}

// handleCostHistogram buckets a cost column into equal-width bins. With
// a group field it bins the per-group sums instead of individual line
// items, so the distribution of whole-project totals is visible.
func (s *Server) handleCostHistogram(w http.ResponseWriter, r *http.Request) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}

	field, err := parseValueField(r, core.ColCombinedTotal)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := parseGroupField(r, "")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	bins, err := parsePositiveInt(r, "bins", 20, 200)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := params.Apply(d)
	var histogram []core.HistogramBin
	if group == "" {
		histogram = view.Histogram(field, bins)
	} else {
		sums, err := view.AggregateBy(group, field, core.OpSum)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		vals := make([]float64, 0, len(sums))
		for _, g := range sums {
			vals = append(vals, g.Value)
		}
		histogram = core.HistogramOf(vals, bins)
	}
	if histogram == nil {
		histogram = []core.HistogramBin{}
	}

	writeJSON(w, map[string]any{
		"field": field,
		"group": group,
		"bins":  histogram,
	})
}

type scatterPoint struct {
	Project string  `json:"project"`
	Items   float64 `json:"x"`
	Cost    float64 `json:"y"`
}

// handleCostScatter returns one point per project: how many priced line
// items it has against what they cost in total. Rows with a missing cost
// never count, so a project of all-missing rows contributes nothing.
func (s *Server) handleCostScatter(w http.ResponseWriter, r *http.Request) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}

	value, err := parseValueField(r, core.ColCombinedTotal)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := params.Apply(d)
	counts, err := view.AggregateBy(core.ColProjectID, value, core.OpCount)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sums, err := view.AggregateBy(core.ColProjectID, value, core.OpSum)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sumByProject := make(map[string]float64, len(sums))
	for _, g := range sums {
		sumByProject[g.Key] = g.Value
	}

	points := make([]scatterPoint, 0, len(counts))
	for _, g := range counts {
		if g.Value == 0 {
			continue
		}
		points = append(points, scatterPoint{
			Project: g.Key,
			Items:   g.Value,
			Cost:    sumByProject[g.Key],
		})
	}

	writeJSON(w, map[string]any{
		"value":  value,
		"points": points,
	})
}

// handleCorrelation computes the Pearson matrix over the requested cost
// columns. Too few complete pairs is a client-visible condition, not a
// server fault, so it maps to 422.
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}

	fields, err := parseCorrelationFields(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := params.Apply(d)
	m, err := view.CorrelationMatrix(fields)
	if err != nil {
		if errors.Is(err, core.ErrInsufficientData) {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]any{
		"fields": m.Fields,
		"matrix": m.Coef,
	})
}

// handlePreview returns the first rows of the filtered view as raw text,
// the way they would export.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}

	limit, err := parsePositiveInt(r, "limit", 20, 500)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := params.Apply(d)
	columns := view.Columns()
	rows := make([]map[string]string, 0, limit)
	for i, rec := range view.Records() {
		if i >= limit {
			break
		}
		row := make(map[string]string, len(columns))
		for _, col := range columns {
			row[col] = rec[col].String()
		}
		rows = append(rows, row)
	}

	writeJSON(w, map[string]any{
		"columns": columns,
		"rows":    rows,
		"total":   view.Len(),
	})
}

type filterOptions struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

func buildFilterOptions(d *core.Dataset) []filterOptions {
	out := make([]filterOptions, 0, len(filterFields))
	for _, field := range filterFields {
		out = append(out, filterOptions{Field: field, Values: d.DistinctValues(field)})
	}
	return out
}

// handleFilters lists the filterable fields with their distinct values,
// plus the accepted grouping and outlier options, so the UI never
// hardcodes them.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	d, err := s.datasets.Dataset(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return
	}

	groups := []string{
		core.ColProjectCategory,
		core.ColConstructionCategory,
		core.ColProjectType,
		core.ColProjectYear,
		core.ColSourceFileName,
	}

	writeJSON(w, map[string]any{
		"filters":         buildFilterOptions(d),
		"group_fields":    groups,
		"value_fields":    core.CostColumns,
		"outlier_presets": []string{"off", "classic", "wide"},
		"default_group":   core.ColConstructionCategory,
		"default_value":   core.ColCombinedTotal,
	})
}

// handleRefresh asks for a background reload of the configured source.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.datasets.RequestRefresh(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Refresh request failed",
			"source", s.datasets.SourceIdentity(),
			"error", err)
		writeJSONError(w, http.StatusBadGateway, "refresh request failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "refresh requested",
		"source": s.datasets.SourceIdentity(),
	})
}

// handleExport streams the filtered view as CSV, raw values as held.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d, params, ok := s.filteredDataset(w, r)
	if !ok {
		return
	}
	view := params.Apply(d)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="costs.csv"`)
	if err := view.Export(w); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

// filteredDataset fetches the current dataset and parses the shared
// filter parameters, writing the error response itself on failure.
func (s *Server) filteredDataset(w http.ResponseWriter, r *http.Request) (*core.Dataset, FilterParams, bool) {
	d, err := s.datasets.Dataset(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return nil, FilterParams{}, false
	}
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return nil, FilterParams{}, false
	}
	return d, params, true
}
