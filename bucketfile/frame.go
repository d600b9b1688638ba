package bucketfile

import (
	"fmt"
	"slices"
)

// Frame is an in-memory table of string cells.
//
// Every row is expected to have exactly len(Columns) cells; Validate
// checks this.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return f.Len() == 0 }

// Column returns the cells of the named column, or false if the frame has
// no such column.
func (f *Frame) Column(name string) ([]string, bool) {
	idx := slices.Index(f.Columns, name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Append adds other's rows to f. Column names must match exactly.
func (f *Frame) Append(other *Frame) error {
	if other.Empty() {
		return nil
	}
	if !slices.Equal(f.Columns, other.Columns) {
		return fmt.Errorf("%w: column mismatch: %v vs %v", ErrInvalidInput, f.Columns, other.Columns)
	}
	f.Rows = append(f.Rows, other.Rows...)
	return nil
}

// Validate reports an error if any row has the wrong number of cells.
func (f *Frame) Validate() error {
	for i, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, frame has %d columns", ErrInvalidInput, i, len(row), len(f.Columns))
		}
	}
	return nil
}
