// Package dataset provides read-only access to the tabular dataset backing
// the dashboard. The source file is exposed as a view inside an embedded
// in-memory DuckDB instance, which lets the column inspector push all
// statistics down to SQL and load only the column it needs.
package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// ErrColumnNotFound is returned when a requested column is absent from the
// dataset schema.
var ErrColumnNotFound = errors.New("dataset: column not found")

// viewName is the fixed relation the source file is exposed as.
const viewName = "dataset"

// column is one entry of the session's schema snapshot.
type column struct {
	name  string
	dtype string
}

// Dataset is a read-only handle on one tabular source file.
//
// The schema is snapshotted once at open time and reused for the lifetime of
// the session; a changed source file requires a fresh Dataset.
type Dataset struct {
	db      *sql.DB
	logger  *slog.Logger
	columns []column
}

// Open attaches the source file (parquet, csv, or json lines, by extension)
// to an in-memory DuckDB instance and snapshots its schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	d := &Dataset{db: db, logger: logger}
	if err := d.attach(ctx, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := d.snapshotSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("dataset opened", "path", path, "columns", len(d.columns))
	return d, nil
}

func (d *Dataset) attach(ctx context.Context, path string) error {
	reader, err := readerFor(path)
	if err != nil {
		return err
	}
	escaped := strings.ReplaceAll(path, "'", "''")
	query := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s('%s')", viewName, reader, escaped)
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("attach dataset %s: %w", path, err)
	}
	return nil
}

func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "read_parquet", nil
	case ".csv", ".tsv":
		return "read_csv_auto", nil
	case ".json", ".jsonl", ".ndjson":
		return "read_json_auto", nil
	default:
		return "", fmt.Errorf("unsupported dataset format: %q", filepath.Ext(path))
	}
}

func (d *Dataset) snapshotSchema(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position
	`, viewName)
	if err != nil {
		return fmt.Errorf("query schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	d.columns = d.columns[:0]
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.dtype); err != nil {
			return fmt.Errorf("scan schema: %w", err)
		}
		d.columns = append(d.columns, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate schema: %w", err)
	}
	if len(d.columns) == 0 {
		return fmt.Errorf("dataset has no columns")
	}
	return nil
}

// Columns returns the column names of the schema snapshot, in source order.
func (d *Dataset) Columns() []string {
	names := make([]string, 0, len(d.columns))
	for _, c := range d.columns {
		names = append(names, c.name)
	}
	return names
}

func (d *Dataset) findColumn(name string) *column {
	for i := range d.columns {
		if d.columns[i].name == name {
			return &d.columns[i]
		}
	}
	return nil
}

// Close releases the embedded database.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// quoteIdent quotes a column name for interpolation into generated SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
