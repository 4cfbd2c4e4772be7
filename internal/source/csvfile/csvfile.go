// Package csvfile loads cost datasets from CSV files on disk.
package csvfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"costcheck/internal/core"
	"costcheck/internal/source"
)

// Source reads one CSV file, or every *.csv in a directory merged into a
// single dataset with records stamped by their source file.
type Source struct {
	path string
	opts core.LoadOptions
}

var _ source.DatasetLoader = (*Source)(nil)

func New(path string, opts core.LoadOptions) *Source {
	return &Source{path: path, opts: opts}
}

func (s *Source) Identity() string { return "csv:" + s.path }

func (s *Source) Load(ctx context.Context) (*core.Dataset, *core.LoadReport, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, nil, &core.LoadError{Source: s.path, Err: err}
	}
	if info.IsDir() {
		return s.loadDir(ctx)
	}
	return s.loadFile(s.path)
}

func (s *Source) loadFile(path string) (*core.Dataset, *core.LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &core.LoadError{Source: path, Err: err}
	}
	defer f.Close()

	opts := s.opts
	opts.Source = path
	d, report, err := core.Load(f, opts)
	if err != nil {
		return nil, nil, err
	}
	return d, report, nil
}

// loadDir loads every *.csv concurrently and merges the results in file
// name order so repeated loads of the same directory agree.
func (s *Source) loadDir(ctx context.Context) (*core.Dataset, *core.LoadReport, error) {
	paths, err := filepath.Glob(filepath.Join(s.path, "*.csv"))
	if err != nil {
		return nil, nil, &core.LoadError{Source: s.path, Err: err}
	}
	if len(paths) == 0 {
		return nil, nil, &core.LoadError{Source: s.path, Err: fmt.Errorf("no csv files in directory")}
	}
	sort.Strings(paths)

	type part struct {
		dataset *core.Dataset
		report  *core.LoadReport
	}
	parts := make([]part, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, report, err := s.loadFile(p)
			if err != nil {
				return err
			}
			mu.Lock()
			parts[i] = part{dataset: d, report: report}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	merged := &core.LoadReport{}
	var columns []string
	seen := make(map[string]struct{})
	var records []core.Record
	for i, p := range parts {
		name := filepath.Base(paths[i])
		for _, c := range p.dataset.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				columns = append(columns, c)
			}
		}
		for _, rec := range p.dataset.Records() {
			if rec[core.ColSourceFileName].IsMissing() {
				rec = stamped(rec, name)
			}
			records = append(records, rec)
		}
		merged.Rows += p.report.Rows
		merged.Derived += p.report.Derived
		merged.Warnings = append(merged.Warnings, p.report.Warnings...)
		slog.DebugContext(ctx, "Loaded cost file", "file", name, "rows", p.report.Rows, "warnings", len(p.report.Warnings))
	}
	if _, ok := seen[core.ColSourceFileName]; !ok {
		columns = append(columns, core.ColSourceFileName)
	}
	merged.Columns = columns
	return core.NewDataset(columns, records), merged, nil
}

// stamped copies a record with its source file name filled in; shared
// records from the per-file datasets are never mutated.
func stamped(rec core.Record, name string) core.Record {
	out := make(core.Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[core.ColSourceFileName] = core.Text(name)
	return out
}
