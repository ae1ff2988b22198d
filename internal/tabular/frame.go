// Package tabular holds the ordered row/column container that Envirofacts CSV
// responses are decoded into.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Frame is an ordered collection of rows with named columns. Row order follows
// the source CSV; merged frames preserve the order of the pieces they were
// built from.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// Decode parses CSV with a header row into a Frame. Rows that fail to parse or
// whose field count does not match the header are dropped, not surfaced as
// errors; the drop count is logged as an advisory. Consumers must tolerate
// this silent data loss.
func Decode(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Frame{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	frame := &Frame{Columns: header}
	dropped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}
		if len(record) != len(header) {
			dropped++
			continue
		}
		frame.Rows = append(frame.Rows, record)
	}

	if dropped > 0 {
		zap.L().Warn("dropped malformed csv rows",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(frame.Rows)),
		)
	}

	return frame, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// ColumnIndex returns the position of the named column. Lookup is
// case-insensitive since Envirofacts headers are upper-cased.
func (f *Frame) ColumnIndex(name string) (int, bool) {
	for i, col := range f.Columns {
		if strings.EqualFold(col, name) {
			return i, true
		}
	}
	return 0, false
}

// Column returns the values of the named column in row order.
func (f *Frame) Column(name string) ([]string, error) {
	idx, ok := f.ColumnIndex(name)
	if !ok {
		return nil, eris.Errorf("tabular: no column %q", name)
	}
	values := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Append concatenates other's rows onto f, preserving order. Column sets must
// match; a frame with no columns (an empty CSV response) merges as a no-op.
func (f *Frame) Append(other *Frame) error {
	if other == nil || len(other.Columns) == 0 {
		return nil
	}
	if len(f.Columns) == 0 {
		f.Columns = other.Columns
		f.Rows = append(f.Rows, other.Rows...)
		return nil
	}
	if len(f.Columns) != len(other.Columns) {
		return eris.Errorf("tabular: column mismatch: %d vs %d", len(f.Columns), len(other.Columns))
	}
	for i := range f.Columns {
		if !strings.EqualFold(f.Columns[i], other.Columns[i]) {
			return eris.Errorf("tabular: column mismatch at %d: %q vs %q", i, f.Columns[i], other.Columns[i])
		}
	}
	f.Rows = append(f.Rows, other.Rows...)
	return nil
}

// FilterIn returns the rows whose value in the named column is in the allowed
// set. Order is preserved.
func (f *Frame) FilterIn(column string, allowed []string) (*Frame, error) {
	idx, ok := f.ColumnIndex(column)
	if !ok {
		return nil, eris.Errorf("tabular: no column %q", column)
	}

	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}

	out := &Frame{Columns: f.Columns}
	for _, row := range f.Rows {
		if _, ok := set[row[idx]]; ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// WriteCSV encodes the frame back to CSV with its header row.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns); err != nil {
		return eris.Wrap(err, "tabular: write header")
	}
	for _, row := range f.Rows {
		if err := writer.Write(row); err != nil {
			return eris.Wrap(err, "tabular: write row")
		}
	}
	writer.Flush()
	return eris.Wrap(writer.Error(), "tabular: flush")
}
