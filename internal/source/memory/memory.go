package memory

import (
	"context"
	"sync"

	"costcheck/internal/core"
)

// Loader serves a fixed dataset from memory. It backs tests and local
// development where no real source is wired up.
type Loader struct {
	mu       sync.Mutex
	dataset  *core.Dataset
	report   *core.LoadReport
	err      error
	identity string
}

func New(d *core.Dataset) *Loader {
	return &Loader{
		dataset:  d,
		report:   &core.LoadReport{Rows: d.Len(), Columns: d.Columns()},
		identity: "memory",
	}
}

// NewFailing returns a loader whose Load always fails with err. Tests use
// it to exercise sample fallback paths.
func NewFailing(err error) *Loader {
	return &Loader{err: err, identity: "memory"}
}

func (l *Loader) Identity() string { return l.identity }

func (l *Loader) Load(_ context.Context) (*core.Dataset, *core.LoadReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, nil, &core.LoadError{Source: l.identity, Err: l.err}
	}
	return l.dataset, l.report, nil
}

// Swap replaces the served dataset, simulating a source that changed.
func (l *Loader) Swap(d *core.Dataset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dataset = d
	l.report = &core.LoadReport{Rows: d.Len(), Columns: d.Columns()}
	l.err = nil
}
