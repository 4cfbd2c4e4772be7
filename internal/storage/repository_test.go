package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"costcheck/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "costcheck.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func loadTestDataset(t *testing.T, csvText string) *core.Dataset {
	t.Helper()
	d, _, err := core.Load(strings.NewReader(csvText), core.LoadOptions{Source: "test.csv"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return d
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := loadTestDataset(t, `id,project_category,labor_total,material_total,notes
1,Residential,100.50,200,first
2,Commercial,n/a,300,second
`)

	id, err := repo.SaveSnapshot(ctx, "csv:test.csv", d)
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if id == 0 {
		t.Fatal("SaveSnapshot() returned zero id")
	}

	got, err := repo.LoadLatest(ctx, "csv:test.csv")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("restored rows = %d, want 2", got.Len())
	}
	wantCols := []string{"id", "project_category", "labor_total", "material_total", "notes"}
	gotCols := got.Columns()
	if len(gotCols) != len(wantCols) {
		t.Fatalf("restored columns = %v, want %v", gotCols, wantCols)
	}
	for i, c := range wantCols {
		if gotCols[i] != c {
			t.Errorf("column[%d] = %q, want %q", i, gotCols[i], c)
		}
	}

	if v := got.Value(0, core.ColLaborTotal); !v.IsNumber() || v.Num != 100.50 {
		t.Errorf("labor_total[0] = %+v, want number 100.50", v)
	}
	// Unparseable numeric text stays missing with the raw preserved.
	if v := got.Value(1, core.ColLaborTotal); !v.IsMissing() || v.Raw != "n/a" {
		t.Errorf("labor_total[1] = %+v, want missing with raw n/a", v)
	}
	// Unrecognized columns ride along through extras.
	if v := got.Value(1, "notes"); v.Raw != "second" {
		t.Errorf("notes[1] = %q, want second", v.Raw)
	}
}

func TestLoadLatestMissingSource(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LoadLatest(context.Background(), "csv:absent.csv")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("LoadLatest() error = %v, want ErrNoSnapshot", err)
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := loadTestDataset(t, "id,labor_total\n1,100\n")
	second := loadTestDataset(t, "id,labor_total\n1,100\n2,200\n3,300\n")

	if _, err := repo.SaveSnapshot(ctx, "csv:data.csv", first); err != nil {
		t.Fatalf("SaveSnapshot(first) error = %v", err)
	}
	if _, err := repo.SaveSnapshot(ctx, "csv:data.csv", second); err != nil {
		t.Fatalf("SaveSnapshot(second) error = %v", err)
	}

	got, err := repo.LoadLatest(ctx, "csv:data.csv")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if got.Len() != 3 {
		t.Errorf("restored rows = %d, want 3", got.Len())
	}

	infos, err := repo.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("snapshot count = %d, want 1", len(infos))
	}
	if infos[0].RowCount != 3 {
		t.Errorf("snapshot row count = %d, want 3", infos[0].RowCount)
	}
}

func TestSnapshotKeepsSyntheticFlag(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := core.Sample(10, 42)
	if _, err := repo.SaveSnapshot(ctx, "sample:10", d); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, err := repo.LoadLatest(ctx, "sample:10")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if !got.Synthetic() {
		t.Error("restored dataset lost the synthetic flag")
	}
	if v := got.Value(0, core.ColSynthetic); v.Raw != "true" {
		t.Errorf("synthetic marker column = %q, want true", v.Raw)
	}
}

func TestSnapshotsPerSource(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := loadTestDataset(t, "id,labor_total\n1,100\n")
	b := loadTestDataset(t, "id,labor_total\n1,100\n2,200\n")

	if _, err := repo.SaveSnapshot(ctx, "csv:a.csv", a); err != nil {
		t.Fatalf("SaveSnapshot(a) error = %v", err)
	}
	if _, err := repo.SaveSnapshot(ctx, "csv:b.csv", b); err != nil {
		t.Fatalf("SaveSnapshot(b) error = %v", err)
	}

	infos, err := repo.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("snapshot count = %d, want 2", len(infos))
	}
}
