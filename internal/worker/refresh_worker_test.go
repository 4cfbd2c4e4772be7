package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"costcheck/internal/amqp"
	"costcheck/internal/core"
	"costcheck/internal/source/memory"
)

type fakeStore struct {
	saved    map[string]*core.Dataset
	snapshot *core.Dataset
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]*core.Dataset)}
}

func (f *fakeStore) SaveSnapshot(_ context.Context, identity string, d *core.Dataset) (int64, error) {
	f.saved[identity] = d
	return int64(len(f.saved)), nil
}

func (f *fakeStore) LoadLatest(_ context.Context, identity string) (*core.Dataset, error) {
	if f.snapshot == nil {
		return nil, errors.New("no snapshot")
	}
	return f.snapshot, nil
}

func workerDataset(t *testing.T) *core.Dataset {
	t.Helper()
	d, _, err := core.Load(strings.NewReader("id,labor_total\n1,100\n"), core.LoadOptions{Source: "mem"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return d
}

func TestHandleRefreshMessageSavesSnapshot(t *testing.T) {
	store := newFakeStore()
	w := NewRefreshWorker(memory.New(workerDataset(t)), store)

	msg := amqp.NewDatasetRefreshMessage("memory")
	if err := w.HandleRefreshMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRefreshMessage() error = %v", err)
	}
	if _, ok := store.saved["memory"]; !ok {
		t.Error("refresh should persist a snapshot")
	}
}

func TestHandleRefreshMessageDropsUnknownSource(t *testing.T) {
	store := newFakeStore()
	w := NewRefreshWorker(memory.New(workerDataset(t)), store)

	msg := amqp.NewDatasetRefreshMessage("csv:other.csv")
	if err := w.HandleRefreshMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRefreshMessage() error = %v", err)
	}
	if len(store.saved) != 0 {
		t.Error("unknown source should not write a snapshot")
	}
}

func TestHandleRefreshMessageUnreadableSource(t *testing.T) {
	store := newFakeStore()
	w := NewRefreshWorker(memory.NewFailing(errors.New("gone")), store)

	msg := amqp.NewDatasetRefreshMessage("memory")
	if err := w.HandleRefreshMessage(context.Background(), msg); err == nil {
		t.Error("unreadable source should error so the delivery is requeued")
	}
	if len(store.saved) != 0 {
		t.Error("failed refresh should not write a snapshot")
	}
}

func TestRefreshSkipsSyntheticData(t *testing.T) {
	store := newFakeStore()
	w := NewRefreshWorker(memory.New(core.Sample(10, 1)), store)

	msg := amqp.NewDatasetRefreshMessage("memory")
	if err := w.HandleRefreshMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRefreshMessage() error = %v", err)
	}
	if len(store.saved) != 0 {
		t.Error("sample data should never be snapshotted")
	}
}

func TestStartupRefreshCheck(t *testing.T) {
	t.Run("loads when no snapshot exists", func(t *testing.T) {
		store := newFakeStore()
		w := NewRefreshWorker(memory.New(workerDataset(t)), store)

		if err := w.StartupRefreshCheck(context.Background()); err != nil {
			t.Fatalf("StartupRefreshCheck() error = %v", err)
		}
		if _, ok := store.saved["memory"]; !ok {
			t.Error("startup check should create the missing snapshot")
		}
	})

	t.Run("skips when snapshot exists", func(t *testing.T) {
		store := newFakeStore()
		store.snapshot = workerDataset(t)
		w := NewRefreshWorker(memory.New(workerDataset(t)), store)

		if err := w.StartupRefreshCheck(context.Background()); err != nil {
			t.Fatalf("StartupRefreshCheck() error = %v", err)
		}
		if len(store.saved) != 0 {
			t.Error("startup check should not rewrite an existing snapshot")
		}
	})
}
