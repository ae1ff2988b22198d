package tabular

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render writes the frame to w as an ASCII table, capped at maxRows data rows
// (0 = no cap). Used by the CLI; library callers work with the frame directly.
func (f *Frame) Render(w io.Writer, maxRows int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(f.Columns))
	for i, col := range f.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for i, row := range f.Rows {
		if maxRows > 0 && i >= maxRows {
			t.AppendFooter(table.Row{"..."})
			break
		}
		r := make(table.Row, len(row))
		for j, cell := range row {
			r[j] = cell
		}
		t.AppendRow(r)
	}

	t.Render()
}
