// Package cli implements the command tree (load, delete, validate,
// check-duplicates, report, compare) on top of spf13/cobra, plus a
// TableWriter adapted from the teacher's own hand-rolled ASCII table
// renderer for the report subcommand's tabular output.
package cli

import (
	"fmt"
	"io"
)

// TableWriter renders a simple bordered ASCII table, unchanged in spirit
// from the original implementation: compute column widths, print header,
// separator, rows.
type TableWriter struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{writer: w}
}

func (t *TableWriter) SetHeader(headers []string) {
	t.headers = headers
}

func (t *TableWriter) Append(row []string) {
	t.rows = append(t.rows, row)
}

func (t *TableWriter) Render() {
	colWidths := make([]int, len(t.headers))
	for i, h := range t.headers {
		colWidths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	fmt.Fprint(t.writer, "| ")
	for i, h := range t.headers {
		fmt.Fprintf(t.writer, "%-*s | ", colWidths[i], h)
	}
	fmt.Fprintln(t.writer)

	fmt.Fprint(t.writer, "| ")
	for i := range t.headers {
		for j := 0; j < colWidths[i]; j++ {
			fmt.Fprint(t.writer, "-")
		}
		fmt.Fprint(t.writer, " | ")
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		fmt.Fprint(t.writer, "| ")
		for i, cell := range row {
			if i < len(colWidths) {
				fmt.Fprintf(t.writer, "%-*s | ", colWidths[i], cell)
			}
		}
		fmt.Fprintln(t.writer)
	}
}
