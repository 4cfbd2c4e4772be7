// Package sample provides the synthetic fallback dataset used when a
// real source is unreadable. It exists for demo continuity only; every
// record it produces carries the synthetic marker.
package sample

import (
	"context"
	"fmt"

	"costcheck/internal/core"
)

type Generator struct {
	size int
	seed int64
}

func New(size int, seed int64) *Generator {
	if size < 1 {
		size = 200
	}
	return &Generator{size: size, seed: seed}
}

func (g *Generator) Identity() string { return fmt.Sprintf("sample:%d", g.size) }

func (g *Generator) Load(_ context.Context) (*core.Dataset, *core.LoadReport, error) {
	d := core.Sample(g.size, g.seed)
	return d, &core.LoadReport{Rows: d.Len(), Columns: d.Columns()}, nil
}
