package adapters

import (
	"context"

	"costcheck/internal/core"
	"costcheck/internal/storage"
)

// SQLiteAdapter serves a persisted snapshot as a dataset source. It lets
// the dashboard run entirely from the local database, with refresh
// workers keeping the snapshot current.
type SQLiteAdapter struct {
	storage  *storage.SQLiteRepository
	identity string
}

// NewSQLiteAdapter wraps a repository as a loader for the snapshot stored
// under the given source identity. An empty identity serves the newest
// snapshot regardless of which source produced it.
func NewSQLiteAdapter(storage *storage.SQLiteRepository, identity string) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:  storage,
		identity: identity,
	}
}

// Identity implements source.DatasetLoader.
func (a *SQLiteAdapter) Identity() string {
	if a.identity == "" {
		return "sqlite"
	}
	return a.identity
}

// Load implements source.DatasetLoader by reading the latest snapshot.
func (a *SQLiteAdapter) Load(ctx context.Context) (*core.Dataset, *core.LoadReport, error) {
	d, err := a.storage.LoadLatest(ctx, a.identity)
	if err != nil {
		return nil, nil, &core.LoadError{Source: a.Identity(), Err: err}
	}
	return d, &core.LoadReport{Rows: d.Len(), Columns: d.Columns()}, nil
}
