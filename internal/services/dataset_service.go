package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"costcheck/internal/core"
	"costcheck/internal/source"
)

// RefreshPublisher asks a background worker to reload a source.
type RefreshPublisher interface {
	PublishDatasetRefresh(ctx context.Context, sourceIdentity string) error
}

// DatasetService owns the current dataset. It loads lazily from the
// configured source, falls back to a snapshot and then to sample data when
// the source is unreadable, and hands out a version number that bumps on
// every successful reload so HTTP caches can key on it.
type DatasetService struct {
	loader source.DatasetLoader
	store  source.SnapshotStore // optional
	queue  RefreshPublisher     // optional

	sampleSize int
	sampleSeed int64

	mu      sync.RWMutex
	current *core.Dataset
	report  *core.LoadReport
	version int64
}

// Option configures a DatasetService.
type Option func(*DatasetService)

// WithSnapshotStore persists successful loads and enables snapshot
// fallback when the live source fails.
func WithSnapshotStore(store source.SnapshotStore) Option {
	return func(s *DatasetService) { s.store = store }
}

// WithRefreshPublisher enables RequestRefresh.
func WithRefreshPublisher(queue RefreshPublisher) Option {
	return func(s *DatasetService) { s.queue = queue }
}

// WithSample sets the size and seed of the fallback sample dataset.
func WithSample(size int, seed int64) Option {
	return func(s *DatasetService) {
		s.sampleSize = size
		s.sampleSeed = seed
	}
}

func NewDatasetService(loader source.DatasetLoader, opts ...Option) *DatasetService {
	s := &DatasetService{
		loader:     loader,
		sampleSize: 200,
		sampleSeed: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dataset returns the current dataset, loading it on first use. The
// returned dataset is immutable; callers filter and aggregate views of it.
func (s *DatasetService) Dataset(ctx context.Context) (*core.Dataset, error) {
	s.mu.RLock()
	if s.current != nil {
		d := s.current
		s.mu.RUnlock()
		return d, nil
	}
	s.mu.RUnlock()

	return s.Reload(ctx)
}

// SourceIdentity names the configured data source.
func (s *DatasetService) SourceIdentity() string {
	return s.loader.Identity()
}

// Report returns the load report of the current dataset, or nil before
// the first load.
func (s *DatasetService) Report() *core.LoadReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Version identifies the currently held dataset. It bumps on every
// successful reload, so it is a valid cache key component.
func (s *DatasetService) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Reload fetches the source again and replaces the current dataset. An
// unreadable source degrades in two steps: the latest persisted snapshot
// if a store is configured, then generated sample data. Reload only
// errors when even the sample cannot stand in, which does not happen
// today; the error return is kept for interface stability.
func (s *DatasetService) Reload(ctx context.Context) (*core.Dataset, error) {
	d, report, err := s.loader.Load(ctx)
	if err != nil {
		var loadErr *core.LoadError
		if !errors.As(err, &loadErr) {
			return nil, fmt.Errorf("load dataset: %w", err)
		}

		slog.WarnContext(ctx, "Cost data source unreadable, degrading",
			"source", s.loader.Identity(),
			"error", err)
		d, report = s.fallback(ctx)
	} else if s.store != nil {
		if _, serr := s.store.SaveSnapshot(ctx, s.loader.Identity(), d); serr != nil {
			slog.ErrorContext(ctx, "Failed to persist dataset snapshot",
				"source", s.loader.Identity(),
				"error", serr)
		}
	}

	if len(report.Warnings) > 0 {
		slog.WarnContext(ctx, "Dataset loaded with coercion warnings",
			"source", s.loader.Identity(),
			"rows", report.Rows,
			"warnings", len(report.Warnings))
	}

	s.mu.Lock()
	s.current = d
	s.report = report
	s.version++
	version := s.version
	s.mu.Unlock()

	slog.InfoContext(ctx, "Dataset loaded",
		"source", s.loader.Identity(),
		"rows", d.Len(),
		"synthetic", d.Synthetic(),
		"version", version)

	return d, nil
}

func (s *DatasetService) fallback(ctx context.Context) (*core.Dataset, *core.LoadReport) {
	if s.store != nil {
		snap, err := s.store.LoadLatest(ctx, s.loader.Identity())
		if err == nil {
			slog.InfoContext(ctx, "Serving persisted snapshot",
				"source", s.loader.Identity(),
				"rows", snap.Len())
			return snap, &core.LoadReport{Rows: snap.Len(), Columns: snap.Columns()}
		}
		slog.WarnContext(ctx, "No usable snapshot",
			"source", s.loader.Identity(),
			"error", err)
	}

	sample := core.Sample(s.sampleSize, s.sampleSeed)
	slog.WarnContext(ctx, "Serving generated sample data",
		"rows", sample.Len())
	return sample, &core.LoadReport{Rows: sample.Len(), Columns: sample.Columns()}
}

// RequestRefresh publishes a refresh message for the configured source so
// a worker reloads it in the background. Without a queue it reloads
// inline instead.
func (s *DatasetService) RequestRefresh(ctx context.Context) error {
	if s.queue == nil {
		slog.InfoContext(ctx, "No refresh queue configured, reloading inline",
			"source", s.loader.Identity())
		_, err := s.Reload(ctx)
		return err
	}

	if err := s.queue.PublishDatasetRefresh(ctx, s.loader.Identity()); err != nil {
		return fmt.Errorf("request refresh: %w", err)
	}
	return nil
}
