package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"costcheck/internal/amqp"
	"costcheck/internal/core"
	"costcheck/internal/source"
)

// RefreshWorker reloads cost data sources in the background and persists
// fresh snapshots, keeping the dashboard's fallback path warm.
type RefreshWorker struct {
	loader source.DatasetLoader
	store  source.SnapshotStore
}

func NewRefreshWorker(loader source.DatasetLoader, store source.SnapshotStore) *RefreshWorker {
	return &RefreshWorker{
		loader: loader,
		store:  store,
	}
}

// HandleRefreshMessage processes a single dataset refresh message.
// Messages for a source other than the configured one are logged and
// acknowledged; requeueing them would loop forever.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.DatasetRefreshMessage) error {
	if msg.Source != "" && msg.Source != w.loader.Identity() {
		slog.WarnContext(ctx, "Refresh message for unknown source, dropping",
			"requested", msg.Source,
			"configured", w.loader.Identity())
		return nil
	}

	return w.refresh(ctx)
}

// StartupRefreshCheck ensures a snapshot exists before the worker starts
// consuming, so a dashboard booting against an unreadable source has
// something real to fall back to.
func (w *RefreshWorker) StartupRefreshCheck(ctx context.Context) error {
	if _, err := w.store.LoadLatest(ctx, w.loader.Identity()); err == nil {
		slog.InfoContext(ctx, "Snapshot already present", "source", w.loader.Identity())
		return nil
	}

	slog.InfoContext(ctx, "No snapshot found on startup, loading source",
		"source", w.loader.Identity())
	return w.refresh(ctx)
}

func (w *RefreshWorker) refresh(ctx context.Context) error {
	d, report, err := w.loader.Load(ctx)
	if err != nil {
		var loadErr *core.LoadError
		if errors.As(err, &loadErr) {
			slog.ErrorContext(ctx, "Source unreadable, keeping previous snapshot",
				"source", w.loader.Identity(),
				"error", err)
		}
		return fmt.Errorf("load source: %w", err)
	}

	if d.Synthetic() {
		// Sample data never overwrites a real snapshot.
		slog.WarnContext(ctx, "Source produced sample data, skipping snapshot",
			"source", w.loader.Identity())
		return nil
	}

	snapshotID, err := w.store.SaveSnapshot(ctx, w.loader.Identity(), d)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot refreshed",
		"source", w.loader.Identity(),
		"snapshot_id", snapshotID,
		"rows", report.Rows,
		"derived_totals", report.Derived,
		"coercion_warnings", len(report.Warnings))

	return nil
}
