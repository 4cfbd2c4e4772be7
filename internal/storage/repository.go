package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"costcheck/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no snapshot exists for a source identity.
var ErrNoSnapshot = errors.New("no snapshot for source")

// SQLiteRepository persists loaded datasets as snapshots keyed by source
// identity. Values are stored as the raw text the source produced, so a
// restored snapshot coerces exactly the way the original load did.
type SQLiteRepository struct {
	db *sql.DB
}

// Columns with a dedicated table column. Anything else a source carries
// goes into the extras JSON blob and round-trips untouched.
var recordColumns = []string{
	core.ColID,
	core.ColProjectID,
	core.ColProjectCategory,
	core.ColConstructionCategory,
	core.ColProjectType,
	core.ColProjectYear,
	core.ColFileName,
	core.ColSourceFileName,
	core.ColLaborTotal,
	core.ColMaterialTotal,
	core.ColEquipmentTotal,
	core.ColCombinedTotal,
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot stores the dataset for a source identity and prunes any
// older snapshot of the same source. It returns the new snapshot id.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, identity string, d *core.Dataset) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	columnsJSON, err := json.Marshal(d.Columns())
	if err != nil {
		return 0, fmt.Errorf("marshal columns: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (source_identity, loaded_at, row_count, synthetic, columns)
		 VALUES (?, ?, ?, ?, ?)`,
		identity, time.Now().UTC(), d.Len(), boolToInt(d.Synthetic()), string(columnsJSON))
	if err != nil {
		return 0, fmt.Errorf("insert dataset: %w", err)
	}
	datasetID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("dataset id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cost_records
		(dataset_id, position, record_id, project_id, project_category, construction_category,
		 project_type, project_year, file_name, source_file_name,
		 labor_total, material_total, equipment_total, total_mat_lab_equip, extras)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	known := make(map[string]struct{}, len(recordColumns))
	for _, c := range recordColumns {
		known[c] = struct{}{}
	}

	for pos, rec := range d.Records() {
		args := make([]any, 0, len(recordColumns)+3)
		args = append(args, datasetID, pos)
		for _, col := range recordColumns {
			args = append(args, nullableRaw(rec, col))
		}

		extras := make(map[string]string)
		for col, v := range rec {
			if _, ok := known[col]; !ok {
				extras[col] = v.Raw
			}
		}
		extrasJSON, err := json.Marshal(extras)
		if err != nil {
			return 0, fmt.Errorf("marshal extras at row %d: %w", pos, err)
		}
		args = append(args, string(extrasJSON))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert record %d: %w", pos, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cost_records WHERE dataset_id IN
		   (SELECT id FROM datasets WHERE source_identity = ? AND id != ?)`,
		identity, datasetID); err != nil {
		return 0, fmt.Errorf("prune old records: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM datasets WHERE source_identity = ? AND id != ?`,
		identity, datasetID); err != nil {
		return 0, fmt.Errorf("prune old datasets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Dataset snapshot saved",
		"source", identity,
		"dataset_id", datasetID,
		"rows", d.Len(),
		"synthetic", d.Synthetic())

	return datasetID, nil
}

// LoadLatest rebuilds the most recent snapshot for a source identity.
// An empty identity selects the newest snapshot of any source, which is
// what a dashboard running purely off the database wants.
func (r *SQLiteRepository) LoadLatest(ctx context.Context, identity string) (*core.Dataset, error) {
	var (
		datasetID   int64
		rowCount    int
		synthetic   int
		columnsJSON string
	)
	query := `SELECT id, row_count, synthetic, columns FROM datasets
		 WHERE source_identity = ? ORDER BY loaded_at DESC, id DESC LIMIT 1`
	args := []any{identity}
	if identity == "" {
		query = `SELECT id, row_count, synthetic, columns FROM datasets
		 ORDER BY loaded_at DESC, id DESC LIMIT 1`
		args = nil
	}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&datasetID, &rowCount, &synthetic, &columnsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("select dataset: %w", err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT record_id, project_id, project_category, construction_category,
		        project_type, project_year, file_name, source_file_name,
		        labor_total, material_total, equipment_total, total_mat_lab_equip, extras
		 FROM cost_records WHERE dataset_id = ? ORDER BY position`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	numeric := make(map[string]struct{}, len(core.CostColumns)+1)
	for _, c := range core.CostColumns {
		numeric[c] = struct{}{}
	}
	numeric[core.ColProjectYear] = struct{}{}

	records := make([]core.Record, 0, rowCount)
	for rows.Next() {
		cells := make([]sql.NullString, len(recordColumns))
		var extrasJSON string
		dest := make([]any, 0, len(recordColumns)+1)
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		dest = append(dest, &extrasJSON)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		rec := make(core.Record, len(recordColumns))
		for i, col := range recordColumns {
			if !cells[i].Valid {
				continue
			}
			raw := cells[i].String
			if _, isNumeric := numeric[col]; isNumeric {
				v := core.Coerce(raw)
				if v.Kind == core.KindText {
					// Failed coercion at original load time; stays missing.
					v = core.Value{Raw: raw}
				}
				rec[col] = v
			} else {
				rec[col] = core.Text(raw)
			}
		}

		var extras map[string]string
		if err := json.Unmarshal([]byte(extrasJSON), &extras); err != nil {
			return nil, fmt.Errorf("unmarshal extras: %w", err)
		}
		for col, raw := range extras {
			rec[col] = core.Text(raw)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	d := core.NewDataset(columns, records)
	if synthetic != 0 {
		d = d.AsSynthetic()
	}
	return d, nil
}

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	ID        int64
	Source    string
	LoadedAt  time.Time
	RowCount  int
	Synthetic bool
}

// Snapshots lists stored snapshots, newest first.
func (r *SQLiteRepository) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source_identity, loaded_at, row_count, synthetic
		 FROM datasets ORDER BY loaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var synthetic int
		if err := rows.Scan(&info.ID, &info.Source, &info.LoadedAt, &info.RowCount, &synthetic); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.Synthetic = synthetic != 0
		out = append(out, info)
	}
	return out, rows.Err()
}

// nullableRaw maps an absent field to SQL NULL so absence and the empty
// string survive the round trip as distinct states.
func nullableRaw(rec core.Record, col string) any {
	v, ok := rec[col]
	if !ok {
		return nil
	}
	return v.Raw
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
