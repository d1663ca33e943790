package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/leapboard/internal/controller"
	"github.com/leapstack-labs/leapboard/internal/dataset"
	"github.com/leapstack-labs/leapboard/internal/layout"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult prints one command outcome in the REPL's line format.
func renderResult(w io.Writer, res controller.Result) {
	if !res.OK {
		_, _ = fmt.Fprintf(w, "ERROR: %s\n", res.Error)
		return
	}
	if len(res.Extra) == 0 {
		_, _ = fmt.Fprintln(w, "OK")
		return
	}
	keys := make([]string, 0, len(res.Extra))
	for k := range res.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(res.Extra[k])))
	}
	_, _ = fmt.Fprintf(w, "OK: %s\n", strings.Join(parts, " "))
}

func renderTabsTable(w io.Writer, doc *layout.Document) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Tab", "Panels", "Filters"})
	for _, tab := range doc.Tabs {
		t.AppendRow(table.Row{tab.Name, len(tab.Panels), strings.Join(tab.Filters, ", ")})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d tabs)\n", len(doc.Tabs))
}

func renderBackupsTable(w io.Writer, names []string) {
	if len(names) == 0 {
		_, _ = fmt.Fprintln(w, "(no backups)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Backup"})
	for i, name := range names {
		t.AppendRow(table.Row{i + 1, name})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d backups, oldest first)\n", len(names))
}

func renderReportTable(w io.Writer, report *dataset.ColumnReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stat", "Value"})
	t.AppendRow(table.Row{"column", report.Column})
	t.AppendRow(table.Row{"dtype", report.DType})
	t.AppendRow(table.Row{"rows_sampled", report.RowsSampled})
	t.AppendRow(table.Row{"missing", fmt.Sprintf("%d (%.1f%%)", report.Missing, report.MissingPct*100)})
	if report.Numeric != nil {
		t.AppendRow(table.Row{"min", formatFloat(report.Numeric.Min)})
		t.AppendRow(table.Row{"max", formatFloat(report.Numeric.Max)})
		t.AppendRow(table.Row{"mean", formatFloat(report.Numeric.Mean)})
		t.AppendRow(table.Row{"std", formatFloat(report.Numeric.Std)})
	}
	for _, level := range []string{"0.01", "0.05", "0.25", "0.5", "0.75", "0.95", "0.99"} {
		if q, ok := report.Quantiles[level]; ok {
			t.AppendRow(table.Row{"q" + level, formatFloat(q)})
		}
	}
	if report.UniqueEstimate != nil {
		t.AppendRow(table.Row{"unique_estimate", *report.UniqueEstimate})
	}
	for _, vc := range report.TopValues {
		t.AppendRow(table.Row{"top: " + vc.Value, vc.Count})
	}
	if len(report.Samples) > 0 {
		t.AppendRow(table.Row{"samples", strings.Join(report.Samples, ", ")})
	}
	t.Render()
}

func formatFloat(f *float64) string {
	if f == nil {
		return "NULL"
	}
	return fmt.Sprintf("%g", *f)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	switch x := v.(type) {
	case string:
		return x
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(data)
	}
}
