// Package export writes suggestion tables and plans in the supported formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// SheetName is the worksheet written by WriteXLSX
const SheetName = "Suggestions"

// Formats lists the accepted stream formats
var Formats = []string{"text", "csv", "json"}

// Write renders table to w in the named format
func Write(w io.Writer, format string, table *models.Table) error {
	switch format {
	case "", "text":
		return WriteText(w, table)
	case "csv":
		return WriteCSV(w, table)
	case "json":
		return WriteJSON(w, table)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func records(table *models.Table) [][]string {
	out := make([][]string, 0, len(table.Rows)+1)
	out = append(out, table.Header())
	for _, r := range table.Rows {
		line := make([]string, 0, len(table.Columns)+3)
		for _, c := range table.Columns {
			line = append(line, formatValue(r.Values[c]))
		}
		line = append(line,
			formatValue(r.PredictedValue),
			formatValue(r.Uncertainty),
			string(r.Method),
		)
		out = append(out, line)
	}
	return out
}

// WriteText writes an aligned table followed by the diversity line
func WriteText(w io.Writer, table *models.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rec := range records(table) {
		for i, cell := range rec {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	d := table.Diversity
	status := "ok"
	if d.Breached {
		status = "BELOW THRESHOLD"
	}
	_, err := fmt.Fprintf(w, "\nmin distance %.2f%% (threshold %.2f%%): %s\n", d.MinDistance*100, d.Threshold*100, status)
	return err
}

// WriteCSV writes the header and one record per suggestion
func WriteCSV(w io.Writer, table *models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records(table)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteJSON writes the table as indented JSON
func WriteJSON(w io.Writer, table *models.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}

// WriteXLSX saves the table to a workbook at path
func WriteXLSX(path string, table *models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := table.Header()
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range table.Rows {
		line := make([]any, 0, len(header))
		for _, c := range table.Columns {
			line = append(line, r.Values[c])
		}
		line = append(line, r.PredictedValue, r.Uncertainty, string(r.Method))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// WriteRowsCSV writes plain rows with the given column order. Missing values
// are left empty.
func WriteRowsCSV(w io.Writer, columns []string, rows []models.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, r := range rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := r[c]; ok {
				line[i] = formatValue(v)
			}
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsCSV writes a header and pre-formatted records
func WriteRecordsCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
