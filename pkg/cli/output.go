package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"mercator-hq/datastore/pkg/storage"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned plain text table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is a JSON array with one object per row.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV with a header line.
	FormatCSV OutputFormat = "csv"
)

// absentText is how text output shows an absent value.
const absentText = "-"

// Table is tabular command output. Every row has one cell per column.
type Table struct {
	Columns []string
	Rows    [][]storage.Value
}

// RecordsTable lays out the records of a table with the target column
// first, the remaining columns sorted and targets in ascending order.
func RecordsTable(data storage.TableData) Table {
	seen := make(map[string]struct{})
	for _, record := range data {
		for column := range record {
			seen[column] = struct{}{}
		}
	}
	delete(seen, storage.TargetColumn)
	columns := slices.Sorted(maps.Keys(seen))

	t := Table{Columns: append([]string{storage.TargetColumn}, columns...)}
	for _, target := range slices.Sorted(maps.Keys(data)) {
		row := make([]storage.Value, 0, len(t.Columns))
		row = append(row, storage.Some(target))
		for _, column := range columns {
			row = append(row, data[target][column])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Formatter writes command output.
type Formatter interface {
	FormatTo(w io.Writer, t Table) error
}

// TextFormatter writes an aligned table.
type TextFormatter struct {
	// NoHeader omits the column names.
	NoHeader bool
}

// FormatTo writes t to w as aligned columns.
func (f *TextFormatter) FormatTo(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if !f.NoHeader {
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.Columns, "\t")))
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = absentText
			if v.Valid {
				cells[i] = v.String
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter writes rows as JSON objects. Absent values are null.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes t to w as a JSON array.
func (f *JSONFormatter) FormatTo(w io.Writer, t Table) error {
	rows := make([]map[string]*string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]*string, len(t.Columns))
		for i, column := range t.Columns {
			if v := row[i]; v.Valid {
				s := v.String
				obj[column] = &s
			} else {
				obj[column] = nil
			}
		}
		rows = append(rows, obj)
	}

	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(rows)
}

// CSVFormatter writes a header line and one record per row. Absent
// values are empty fields.
type CSVFormatter struct{}

// FormatTo writes t to w as CSV.
func (f *CSVFormatter) FormatTo(w io.Writer, t Table) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = v.String
		}
		if err := csvWriter.Write(fields); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// NewFormatter creates a formatter for the named format.
func NewFormatter(format string) (Formatter, error) {
	switch OutputFormat(strings.ToLower(format)) {
	case FormatText, "":
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, NewConfigError("--format", fmt.Sprintf("unknown output format %q (must be one of: text, json, csv)", format))
	}
}
