package source

import (
	"context"

	"costcheck/internal/core"
)

// Ports for dataset adapters.
type (
	// DatasetLoader loads the full cost dataset from some origin.
	DatasetLoader interface {
		// Load returns the dataset together with the load report.
		Load(ctx context.Context) (*core.Dataset, *core.LoadReport, error)

		// Identity names the source (path, spreadsheet id, ...) so that
		// caches and snapshots can be keyed by it.
		Identity() string
	}

	// SnapshotStore persists loaded datasets keyed by source identity.
	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, identity string, d *core.Dataset) (int64, error)
		LoadLatest(ctx context.Context, identity string) (*core.Dataset, error)
	}
)
