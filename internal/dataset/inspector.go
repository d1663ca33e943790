package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Inspection defaults.
const (
	DefaultRowLimit = 100000
	DefaultTopN     = 20

	SampleHead   = "head"
	SampleRandom = "random"

	// Fixed seed so repeated random samples of the same data agree.
	sampleSeed = 42

	maxSampleValues = 10
)

// quantileLevels are reported for numeric columns, keyed by their literal
// level in the report.
var quantileLevels = []float64{0.01, 0.05, 0.25, 0.5, 0.75, 0.95, 0.99}

// InspectOptions controls sampling and reporting for Inspect. Zero values
// select the defaults.
type InspectOptions struct {
	RowLimit   int
	SampleMode string
	TopN       int
}

func (o *InspectOptions) applyDefaults() {
	if o.RowLimit <= 0 {
		o.RowLimit = DefaultRowLimit
	}
	if o.SampleMode == "" {
		o.SampleMode = SampleHead
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
}

// NumericStats summarizes a numeric column. Fields are nil when every sampled
// value is missing.
type NumericStats struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
}

// ValueCount is one entry of a frequency table. Missing values appear as the
// explicit "NA" category.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// ColumnReport is the advisory summary produced by Inspect.
type ColumnReport struct {
	Column         string              `json:"column"`
	DType          string              `json:"dtype"`
	RowsSampled    int64               `json:"rows_sampled"`
	Missing        int64               `json:"missing"`
	MissingPct     float64             `json:"missing_pct"`
	Numeric        *NumericStats       `json:"numeric,omitempty"`
	Quantiles      map[string]*float64 `json:"quantiles,omitempty"`
	TopValues      []ValueCount        `json:"top_values,omitempty"`
	UniqueEstimate *int64              `json:"unique_estimate,omitempty"`
	Samples        []string            `json:"samples"`
}

// Inspect computes summary statistics for one column. Only that column is
// read. Columns larger than the row limit are subsampled: head mode takes a
// prefix, random mode draws a seeded reservoir sample so repeated calls agree.
func (d *Dataset) Inspect(ctx context.Context, name string, opts InspectOptions) (*ColumnReport, error) {
	col := d.findColumn(name)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	opts.applyDefaults()

	var total int64
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s", viewName)
	if err := d.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	// The sampled relation every statistic below is computed over.
	sample := fmt.Sprintf("SELECT %s AS v FROM %s", quoteIdent(name), viewName)
	if total > int64(opts.RowLimit) {
		if opts.SampleMode == SampleRandom {
			sample += fmt.Sprintf(" USING SAMPLE %d ROWS (reservoir, %d)", opts.RowLimit, sampleSeed)
		} else {
			sample += fmt.Sprintf(" LIMIT %d", opts.RowLimit)
		}
	}

	report := &ColumnReport{
		Column:  name,
		DType:   col.dtype,
		Samples: []string{},
	}

	var nonNull int64
	countsQuery := fmt.Sprintf("WITH s AS (%s) SELECT count(*), count(v) FROM s", sample)
	if err := d.db.QueryRowContext(ctx, countsQuery).Scan(&report.RowsSampled, &nonNull); err != nil {
		return nil, fmt.Errorf("count column %s: %w", name, err)
	}
	report.Missing = report.RowsSampled - nonNull
	report.MissingPct = float64(report.Missing) / float64(max(int64(1), report.RowsSampled))

	if isNumericType(col.dtype) {
		if err := d.numericStats(ctx, sample, report); err != nil {
			return nil, err
		}
	} else {
		if err := d.frequencyStats(ctx, sample, opts.TopN, report); err != nil {
			return nil, err
		}
	}

	if err := d.sampleValues(ctx, sample, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (d *Dataset) numericStats(ctx context.Context, sample string, report *ColumnReport) error {
	exprs := []string{
		"min(v)::DOUBLE",
		"max(v)::DOUBLE",
		"avg(v)::DOUBLE",
		"stddev_samp(v)::DOUBLE",
	}
	for _, q := range quantileLevels {
		exprs = append(exprs, fmt.Sprintf("quantile_cont(v, %g)::DOUBLE", q))
	}
	query := fmt.Sprintf("WITH s AS (%s) SELECT %s FROM s", sample, strings.Join(exprs, ", "))

	dest := make([]sql.NullFloat64, len(exprs))
	ptrs := make([]any, len(exprs))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := d.db.QueryRowContext(ctx, query).Scan(ptrs...); err != nil {
		return fmt.Errorf("numeric stats: %w", err)
	}

	report.Numeric = &NumericStats{
		Min:  nullable(dest[0]),
		Max:  nullable(dest[1]),
		Mean: nullable(dest[2]),
		Std:  nullable(dest[3]),
	}
	report.Quantiles = make(map[string]*float64, len(quantileLevels))
	for i, q := range quantileLevels {
		report.Quantiles[fmt.Sprintf("%g", q)] = nullable(dest[4+i])
	}
	return nil
}

func (d *Dataset) frequencyStats(ctx context.Context, sample string, topN int, report *ColumnReport) error {
	query := fmt.Sprintf(`
		WITH s AS (%s)
		SELECT coalesce(CAST(v AS VARCHAR), 'NA') AS val, count(*) AS n
		FROM s
		GROUP BY val
		ORDER BY n DESC, val
		LIMIT %d
	`, sample, topN)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("top values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	report.TopValues = []ValueCount{}
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return fmt.Errorf("scan top value: %w", err)
		}
		report.TopValues = append(report.TopValues, vc)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate top values: %w", err)
	}

	uniqueQuery := fmt.Sprintf(
		"WITH s AS (%s) SELECT approx_count_distinct(coalesce(CAST(v AS VARCHAR), 'NA')) FROM s",
		sample,
	)
	var unique int64
	if err := d.db.QueryRowContext(ctx, uniqueQuery).Scan(&unique); err != nil {
		return fmt.Errorf("distinct estimate: %w", err)
	}
	report.UniqueEstimate = &unique
	return nil
}

func (d *Dataset) sampleValues(ctx context.Context, sample string, report *ColumnReport) error {
	query := fmt.Sprintf(
		"WITH s AS (%s) SELECT CAST(v AS VARCHAR) FROM s WHERE v IS NOT NULL LIMIT %d",
		sample, maxSampleValues,
	)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("sample values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("scan sample value: %w", err)
		}
		report.Samples = append(report.Samples, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sample values: %w", err)
	}
	return nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func isNumericType(dtype string) bool {
	t := strings.ToUpper(dtype)
	if strings.HasPrefix(t, "DECIMAL") {
		return true
	}
	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"FLOAT", "REAL", "DOUBLE":
		return true
	}
	return false
}
