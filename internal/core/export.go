package core

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Export writes the dataset as CSV using the in-memory column order.
// Headers go out exactly as held; a coerced-to-missing cell still exports
// its original raw text so a load/export round trip loses nothing.
func (d *Dataset) Export(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(d.columns))
	for i, rec := range d.records {
		for j, col := range d.columns {
			row[j] = rec[col].String()
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
