package google

import (
	"encoding/csv"
	"fmt"
	"strings"

	"costcheck/internal/core"
)

// parseValues converts a values matrix (as returned by the Sheets API)
// into a dataset by rendering it as CSV and running it through the core
// loader, so header normalization and numeric coercion behave exactly as
// they do for files.
func parseValues(values [][]interface{}, opts core.LoadOptions) (*core.Dataset, *core.LoadReport, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	width := len(toStrings(values[0]))
	for _, row := range values {
		cells := toStrings(row)
		// The API drops trailing empty cells; pad so every row matches
		// the header width.
		for len(cells) < width {
			cells = append(cells, "")
		}
		if err := w.Write(cells); err != nil {
			return nil, nil, fmt.Errorf("render sheet row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, nil, fmt.Errorf("render sheet: %w", err)
	}
	// The rendered intermediate is always comma separated, whatever the
	// configured file delimiter is.
	opts.Comma = ','
	return core.Load(strings.NewReader(sb.String()), opts)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
